package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"valid integer", "100", "100", false},
		{"valid decimal", "3.14", "3.14", false},
		{"comma decimal", "312,75", "312.75", false},
		{"negative", "-5.5", "-5.5", false},
		{"surrounding spaces", " 42 ", "42", false},
		{"empty string", "", "", true},
		{"whitespace", "  ", "", true},
		{"invalid string", "abc", "", true},
		{"thousands and comma", "1.234,5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseValue(%q) = %s, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseValue(%q) unexpected error: %v", tt.input, err)
			}
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("ParseValue(%q) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestSafeParse(t *testing.T) {
	if got := SafeParse("abc"); !got.IsZero() {
		t.Errorf("SafeParse(abc) = %s, want 0", got)
	}
	if got := SafeParse("7,5"); !got.Equal(decimal.NewFromFloat(7.5)) {
		t.Errorf("SafeParse(7,5) = %s, want 7.5", got)
	}
}

func TestSafeDivide(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"normal", "10", "4", "2.5"},
		{"division by zero", "10", "0", "0"},
		{"zero numerator", "0", "5", "0"},
		{"negative", "-9", "3", "-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeDivide(decimal.RequireFromString(tt.a), decimal.RequireFromString(tt.b))
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("SafeDivide(%s, %s) = %s, want %s", tt.a, tt.b, got, want)
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"integer", "50", "50"},
		{"rounds to four places", "1.23456", "1.2346"},
		{"trailing zeros stripped", "1.1000", "1.1"},
		{"small fraction", "0.0001", "0.0001"},
		{"below precision", "0.00004", "0"},
		{"negative", "-7.25", "-7.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(decimal.RequireFromString(tt.in)); got != tt.want {
				t.Errorf("FormatValue(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
