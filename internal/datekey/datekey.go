// Package datekey normalizes the spreadsheet's display dates
// ("DD/MM/YYYY" with an optional trailing "HH:MM") into canonical
// zero-padded "YYYY-MM-DD" keys. The canonical form is fixed-width, so
// plain string comparison orders keys chronologically; it is used for
// range filtering only and never shown to users.
package datekey

import (
	"strconv"
	"strings"
)

// Normalize returns the canonical key for a display date, or false if
// the input does not look like one. Validation is intentionally
// permissive: month must be <= 12 and day <= 31, but per-month day
// counts and leap years are not checked, matching what the sheet has
// historically accepted.
func Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	// Drop the time component if present.
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		s = s[:idx]
	}

	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return "", false
	}

	day := pad(parts[0], 2)
	month := pad(parts[1], 2)
	year := pad(parts[2], 4)

	if len(year) != 4 {
		return "", false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m > 12 {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d > 31 {
		return "", false
	}
	if _, err := strconv.Atoi(year); err != nil {
		return "", false
	}

	return year + "-" + month + "-" + day, true
}

// SplitDisplay returns the day/month/year components of a display date,
// untouched apart from removing the time portion. Used by the revenue
// bucketing, which keys on the components exactly as stored.
func SplitDisplay(raw string) (day, month, year string, ok bool) {
	s := strings.TrimSpace(raw)
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		s = s[:idx]
	}
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func pad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
