package models

import (
	"regexp"
	"strings"

	dErrors "scimgate/pkg/domain-errors"
)

// emailPattern is a conservative check: ASCII local@domain.tld with a TLD of
// at least two letters. Compiled once at process start.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const maxEmailLength = 254

// NormalizeEmail validates and canonicalizes an email address. Addresses are
// trimmed and lowercased before the pattern check so equality comparisons
// behave case-insensitively.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "Email address is required")
	}
	if len(email) > maxEmailLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "Email address is too long")
	}
	if !emailPattern.MatchString(email) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "Email address is not valid")
	}
	return email, nil
}
