package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrCityEmpty is returned when the selection is empty or whitespace-only after trim.
var ErrCityEmpty = errors.New("city is required")

// ErrCityTooLong is returned when the selection exceeds the maximum length.
var ErrCityTooLong = errors.New("city too long")

// ErrCityInvalidChars is returned when the selection contains disallowed characters.
var ErrCityInvalidChars = errors.New("city contains invalid characters")

// ErrCityUnknown is returned when the selection is not one of the enumerated cities.
var ErrCityUnknown = errors.New("city is not in the list")

// Membership reports whether a display name is selectable.
type Membership interface {
	Contains(displayName string) bool
}

// ValidateCity trims the input, enforces maxLen (in runes, 0 disables), restricts
// to letters (Unicode), digits and space, then checks membership.
// Returns the trimmed name or an error suitable for 400 INVALID_CITY responses.
func ValidateCity(input string, maxLen int, set Membership) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrCityEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	if set != nil && !set.Contains(s) {
		return "", ErrCityUnknown
	}
	return s, nil
}

func isAllowedCityRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' '
}
