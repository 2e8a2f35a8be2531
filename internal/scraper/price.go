package scraper

import (
	"strconv"
	"strings"
)

// ParsePrice converts store-native price text ("$14.98", "MXN 1,299.00") to a
// numeric value by stripping everything that is not a digit or decimal point.
// Text with no parsable number yields ok=false; that is "no price", not an
// error.
func ParsePrice(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return 0, false
	}

	return value, true
}
