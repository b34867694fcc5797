package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrCityEmpty is returned when the city name is empty or whitespace-only after trim.
var ErrCityEmpty = errors.New("city name is required")

// ErrCityTooLong is returned when the city name exceeds the maximum length.
var ErrCityTooLong = errors.New("city name too long")

// ErrCityInvalidChars is returned when the city name contains disallowed characters.
var ErrCityInvalidChars = errors.New("city name contains invalid characters")

// MaxCityLength is the maximum accepted city-name length in runes.
const MaxCityLength = 100

// SanitizeCity trims the input and enforces the allowed character set:
// Unicode letters, digits, whitespace, hyphen, apostrophe, comma, period,
// underscore. Returns the trimmed string. Validation failures are local
// errors; no network call is ever made on rejected input.
func SanitizeCity(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrCityEmpty
	}
	if len(r) > MaxCityLength {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	return s, nil
}

// isAllowedCityRune returns true for letters (Unicode), digits, whitespace,
// hyphen, apostrophe, comma, period, underscore.
func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '-', '\'', ',', '.', '_':
		return true
	}
	return false
}
