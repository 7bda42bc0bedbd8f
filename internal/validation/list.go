package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"parentslist/internal/models"
)

const (
	MinListNameLength   = 2
	MaxListNameLength   = 64
	MaxJoinMessageRunes = 1000
	MaxPersonNameRunes  = 100
)

// NormalizeListName trims surrounding whitespace and checks the length bounds.
func NormalizeListName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < MinListNameLength || n > MaxListNameLength {
		return "", fmt.Errorf("list name must be between %d and %d characters", MinListNameLength, MaxListNameLength)
	}
	return name, nil
}

// ValidateCapacity checks the number of holder seats requested for a list.
func ValidateCapacity(capacity int) error {
	if capacity < models.MinListCapacity || capacity > models.MaxListCapacity {
		return fmt.Errorf("capacity must be between %d and %d", models.MinListCapacity, models.MaxListCapacity)
	}
	return nil
}

// ValidateJoinMessage accepts an empty message or one of at most 1000 characters.
func ValidateJoinMessage(message string) error {
	if utf8.RuneCountInString(message) > MaxJoinMessageRunes {
		return fmt.Errorf("message must not exceed %d characters", MaxJoinMessageRunes)
	}
	return nil
}

// ValidatePersonName checks a name or first name before it is encrypted.
func ValidatePersonName(field, value string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n == 0 {
		return fmt.Errorf("%s is required", field)
	}
	if n > MaxPersonNameRunes {
		return fmt.Errorf("%s must not exceed %d characters", field, MaxPersonNameRunes)
	}
	return nil
}
