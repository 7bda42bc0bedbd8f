package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Rune limits for the fields of a school.
const (
	MaxSchoolNameRunes    = 128
	MaxSchoolCityRunes    = 64
	MaxSchoolZipCodeRunes = 16
	MaxSchoolCountryRunes = 64
	MaxSchoolAddressRunes = 256
)

// NormalizeSchoolField trims value and requires between 1 and max characters.
func NormalizeSchoolField(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return "", fmt.Errorf("%s is required", field)
	}
	if n > max {
		return "", fmt.Errorf("%s must not exceed %d characters", field, max)
	}
	return value, nil
}
