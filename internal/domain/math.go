package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const displayPrecision = 4

// ParseValue parses a user-supplied numeric value. Both "1234.5" and the Brazilian
// "1234,5" decimal separator are accepted.
func ParseValue(value string) (decimal.Decimal, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing value %q: %w", value, err)
	}
	return d, nil
}

// SafeParse parses a string into a decimal, returning zero for invalid or empty input.
func SafeParse(value string) decimal.Decimal {
	d, err := ParseValue(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SafeDivide divides a by b, returning zero when b is zero.
func SafeDivide(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// FormatValue rounds to four decimal places and strips trailing zeros.
func FormatValue(d decimal.Decimal) string {
	s := d.Round(displayPrecision).StringFixed(displayPrecision)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
