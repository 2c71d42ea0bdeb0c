// Package validation holds the input rules for Zephyr accounts, communities and threads.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLen = 12
	maxPasswordLen = 72 // bcrypt input limit
	minUsernameLen = 3
	maxUsernameLen = 30
	maxDisplayLen  = 60
	maxEmailLen    = 254

	passwordSpecials = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

var (
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9_-]*[A-Za-z0-9])?$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)
)

// ValidatePassword requires 12 to 72 bytes with upper and lower case letters,
// a digit and one of the ASCII specials.
func ValidatePassword(password string) error {
	switch {
	case len(password) < minPasswordLen:
		return fmt.Errorf("password must be at least %d characters long", minPasswordLen)
	case len(password) > maxPasswordLen:
		return fmt.Errorf("password must not exceed %d characters", maxPasswordLen)
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}

	switch {
	case !upper:
		return errors.New("password must contain at least one uppercase letter")
	case !lower:
		return errors.New("password must contain at least one lowercase letter")
	case !digit:
		return errors.New("password must contain at least one digit")
	case !special:
		return errors.New("password must contain at least one special character (!@#$%^&*)")
	}
	return nil
}

// ValidateUsername allows 3 to 30 ASCII letters, digits, '_' and '-', not starting
// or ending with a separator.
func ValidateUsername(username string) error {
	switch {
	case len(username) < minUsernameLen:
		return fmt.Errorf("username must be at least %d characters long", minUsernameLen)
	case len(username) > maxUsernameLen:
		return fmt.Errorf("username must not exceed %d characters", maxUsernameLen)
	case !usernameRegex.MatchString(username):
		return errors.New("username can only contain letters, numbers, underscores and hyphens, and must start and end with a letter or number")
	}
	return nil
}

// ValidateDisplayName checks the free-form name shown next to posts and messages.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("display name is required")
	}
	if utf8.RuneCountInString(name) > maxDisplayLen {
		return fmt.Errorf("display name must not exceed %d characters", maxDisplayLen)
	}
	return nil
}

func ValidateEmail(email string) error {
	if len(email) > maxEmailLen {
		return fmt.Errorf("email must not exceed %d characters", maxEmailLen)
	}
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address before lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
