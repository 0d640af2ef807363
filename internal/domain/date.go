package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ISODateLayout is used by the API and the webhook payload.
	ISODateLayout = "2006-01-02"
	// LegacyDateLayout is the dd/mm/yyyy form stored by the original quote collections.
	LegacyDateLayout = "02/01/2006"
)

// NormalizeDate truncates t to its calendar day at midnight UTC, keeping t's wall-clock date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts either yyyy-mm-dd or dd/mm/yyyy and returns a normalized date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{ISODateLayout, LegacyDateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return NormalizeDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or DD/MM/YYYY", s)
}

// FormatISODate formats a date as yyyy-mm-dd.
func FormatISODate(t time.Time) string {
	return t.Format(ISODateLayout)
}

// FormatLegacyDate formats a date as dd/mm/yyyy.
func FormatLegacyDate(t time.Time) string {
	return t.Format(LegacyDateLayout)
}
