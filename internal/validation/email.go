package validation

import (
	"net/mail"
	"strings"

	"github.com/templui/skillfolio/internal/model"
	"golang.org/x/text/cases"
)

// NormalizeEmail trims and case-folds an address so lookups match however the
// user typed it.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// ValidateEmail validates email format and length.
// RFC 5321 caps the address at 254 characters.
func ValidateEmail(email string) error {
	if email == "" {
		return model.Invalid("email", "email address is required")
	}
	if len(email) > 254 {
		return model.Invalid("email", "email address is too long (max 254 characters)")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return model.Invalid("email", "invalid email address format")
	}
	return nil
}
