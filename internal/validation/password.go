package validation

import (
	"strings"
	"unicode"

	"github.com/templui/skillfolio/internal/model"
)

const (
	PasswordMinLength = 12
	// bcrypt ignores everything past 72 bytes.
	PasswordMaxLength = 72
)

var commonPasswords = []string{
	"password", "123456", "qwerty", "azerty", "admin", "letmein",
	"welcome", "monkey", "dragon", "master", "sunshine", "iloveyou",
}

// ValidatePassword checks password against the policy and reports every rule
// it breaks, not just the first.
func ValidatePassword(password string) error {
	var problems []string

	if len(password) < PasswordMinLength {
		problems = append(problems, "must be at least 12 characters")
	}
	if len(password) > PasswordMaxLength {
		problems = append(problems, "must not exceed 72 characters")
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			symbol = true
		}
	}
	if !upper {
		problems = append(problems, "must contain an uppercase letter")
	}
	if !lower {
		problems = append(problems, "must contain a lowercase letter")
	}
	if !digit {
		problems = append(problems, "must contain a digit")
	}
	if !symbol {
		problems = append(problems, "must contain a symbol")
	}

	folded := strings.ToLower(password)
	for _, pattern := range commonPasswords {
		if strings.Contains(folded, pattern) {
			problems = append(problems, "is too common, please choose a stronger one")
			break
		}
	}

	if len(problems) > 0 {
		return model.Invalid("password", "password does not meet the requirements", problems...)
	}
	return nil
}
