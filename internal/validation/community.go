package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxCommunityNameLen = 80
	maxDescriptionLen   = 2000
	maxHashtags         = 10
	maxHeadingLen       = 200
	maxPostLen          = 20000
)

var reservedCommunityNames = map[string]struct{}{
	"admin":    {},
	"zephyr":   {},
	"support":  {},
	"official": {},
	"mine":     {},
}

// ValidateCommunity checks the fields supplied when creating or editing a community.
func ValidateCommunity(name, description string, hashtags []string) error {
	trimmed := strings.TrimSpace(name)
	if utf8.RuneCountInString(trimmed) < 3 {
		return fmt.Errorf("community name must be at least 3 characters long")
	}
	if utf8.RuneCountInString(trimmed) > maxCommunityNameLen {
		return fmt.Errorf("community name must not exceed %d characters", maxCommunityNameLen)
	}
	if _, reserved := reservedCommunityNames[strings.ToLower(trimmed)]; reserved {
		return fmt.Errorf("community name is reserved")
	}
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return fmt.Errorf("description must not exceed %d characters", maxDescriptionLen)
	}
	if len(hashtags) > maxHashtags {
		return fmt.Errorf("at most %d hashtags are allowed", maxHashtags)
	}
	return nil
}

// ValidateZepchat checks a forum post before it is stored.
func ValidateZepchat(heading, body string) error {
	if err := ValidateHeading(heading); err != nil {
		return err
	}
	return ValidateBody(body)
}

// ValidateHeading checks a post title on its own, as when only the heading is edited.
func ValidateHeading(heading string) error {
	if strings.TrimSpace(heading) == "" {
		return fmt.Errorf("heading is required")
	}
	if utf8.RuneCountInString(heading) > maxHeadingLen {
		return fmt.Errorf("heading must not exceed %d characters", maxHeadingLen)
	}
	return nil
}

// ValidateBody checks the content of a post, reply or message.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("content is required")
	}
	if utf8.RuneCountInString(body) > maxPostLen {
		return fmt.Errorf("content must not exceed %d characters", maxPostLen)
	}
	return nil
}
