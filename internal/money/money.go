// Package money parses and formats the display representation of
// amounts used throughout the spreadsheet ("1,234,567 đ").
//
// The currency has no fractional subunits, so both ',' and '.' are
// treated as grouping characters and stripped before parsing. A cell
// that genuinely contained a decimal fraction would be read with its
// digits concatenated; that is the store's convention, not a bug.
package money

import (
	"strconv"
	"strings"
)

const currencyMarker = "đ"

// Parse converts a raw cell value into an integer amount. Empty or
// unparsable input yields (0, false); callers that care about dirty
// data can count the false outcomes, everyone else just uses the zero.
func Parse(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	s = strings.ReplaceAll(s, currencyMarker, "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseStrict mimics the ledger updater's reading of the cached spend
// cell: strip the currency suffix and thousands separators, then accept
// only an all-digit remainder. Anything else counts as zero.
func ParseStrict(raw string) int64 {
	s := strings.ReplaceAll(raw, " "+currencyMarker, "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || !isDigits(s) {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Format renders an amount back into the sheet's display convention
// with thousands separators and the currency suffix.
func Format(n int64) string {
	digits := strconv.FormatInt(n, 10)
	negative := strings.HasPrefix(digits, "-")
	if negative {
		digits = digits[1:]
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}

	out := b.String()
	if negative {
		out = "-" + out
	}
	return out + " " + currencyMarker
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
