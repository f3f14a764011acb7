// internal/week/week.go
//
// Every weekly-hours bucket in crewdeck is keyed by the canonical Monday of
// its week. This package is the single source of that key; nothing else in
// the codebase computes week boundaries.

package week

import (
	"fmt"
	"time"
)

// KeyLayout is the wire format of a canonical week key.
const KeyLayout = "2006-01-02"

// CanonicalKey returns the YYYY-MM-DD date of the Monday beginning the week
// that contains t, computed in t's location. Sundays roll backward six days,
// never forward one.
func CanonicalKey(t time.Time) string {
	// Weekday is Sunday=0; shift so Monday=0 .. Sunday=6.
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

// Monday returns the midnight instant of the canonical Monday for t's week,
// in t's location.
func Monday(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	shifted := t.AddDate(0, 0, -offset)
	y, m, d := shifted.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddWeeks shifts a canonical key by n weeks. The input must itself be
// canonical.
func AddWeeks(key string, n int) (string, error) {
	t, err := Parse(key)
	if err != nil {
		return "", err
	}
	return CanonicalKey(t.AddDate(0, 0, 7*n)), nil
}

// Parse decodes a week key into its Monday midnight (local time).
func Parse(key string) (time.Time, error) {
	t, err := time.ParseInLocation(KeyLayout, key, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("week: parse key %q: %w", key, err)
	}
	return t, nil
}

// IsCanonical reports whether key is a value CanonicalKey could have
// produced, i.e. a well-formed date that falls on a Monday.
func IsCanonical(key string) bool {
	t, err := Parse(key)
	if err != nil {
		return false
	}
	return t.Weekday() == time.Monday && CanonicalKey(t) == key
}
