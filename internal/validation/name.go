package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/templui/skillfolio/internal/model"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{2,29}$`)

// ValidateUsername allows 3 to 30 letters, digits, dots, dashes and
// underscores, starting with a letter or digit.
func ValidateUsername(username string) error {
	if username == "" {
		return model.Invalid("username", "username is required")
	}
	if !usernameRe.MatchString(username) {
		return model.Invalid("username", "username must be 3-30 letters, digits, '.', '-' or '_'")
	}
	return nil
}

// ValidateName checks a required free-text name (skill name, project title)
// against a maximum length in characters.
func ValidateName(field, value string, max int) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return model.Invalid(field, field+" is required")
	}
	if utf8.RuneCountInString(trimmed) > max {
		return model.Invalid(field, field+" is too long")
	}
	return nil
}
