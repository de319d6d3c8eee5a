// Package validation checks collection request input before it reaches the collector.
package validation

import (
	"errors"
	"math"
	"strings"
	"unicode"
)

var (
	ErrCityEmpty        = errors.New("city is required")
	ErrCityTooShort     = errors.New("city too short")
	ErrCityTooLong      = errors.New("city too long")
	ErrCityInvalidChars = errors.New("city contains invalid characters")
	ErrLatitudeRange    = errors.New("latitude must be between -90 and 90")
	ErrLongitudeRange   = errors.New("longitude must be between -180 and 180")
	ErrLimitRange       = errors.New("limit out of range")
)

// ValidateCity trims the input, enforces length bounds in runes (0 disables a bound)
// and allows letters, digits, space, comma, hyphen, period and apostrophe.
// Returns the trimmed name with its original casing.
func ValidateCity(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	n := len([]rune(s))
	switch {
	case n == 0:
		return "", ErrCityEmpty
	case minLen > 0 && n < minLen:
		return "", ErrCityTooShort
	case maxLen > 0 && n > maxLen:
		return "", ErrCityTooLong
	}
	for _, c := range s {
		if !isAllowedCityRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	return s, nil
}

func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

// ValidateCoordinates range-checks a latitude/longitude pair. NaN and infinities are rejected.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return ErrLatitudeRange
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return ErrLongitudeRange
	}
	return nil
}

// ValidateLimit returns def when limit is 0 and rejects values outside 1..max.
func ValidateLimit(limit, def, max int) (int, error) {
	if limit == 0 {
		return def, nil
	}
	if limit < 0 || limit > max {
		return 0, ErrLimitRange
	}
	return limit, nil
}
