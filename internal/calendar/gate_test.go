package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEaster(t *testing.T) {
	tests := []struct {
		year int
		want string
	}{
		{2019, "2019-04-21"},
		{2024, "2024-03-31"},
		{2025, "2025-04-20"},
		{2026, "2026-04-05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Easter(tt.year).Format("2006-01-02"), tt.year)
	}
}

func TestNationalHolidaysIncludesMovableDates(t *testing.T) {
	dates := map[string]string{}
	for _, h := range NationalHolidays(2025) {
		dates[h.Date.Format("2006-01-02")] = h.Name
	}
	for _, d := range []string{"2025-03-03", "2025-03-04", "2025-04-18", "2025-06-19", "2025-11-20", "2025-12-25"} {
		assert.Contains(t, dates, d)
	}

	for _, h := range NationalHolidays(2023) {
		assert.NotEqual(t, "2023-11-20", h.Date.Format("2006-01-02"))
	}
}

func TestCheck(t *testing.T) {
	gate := NewGate(StaticSource{"2025-01-25": "Aniversário de São Paulo"})

	tests := []struct {
		name    string
		req     Request
		allowed bool
	}{
		{"business day", Request{Date: "2025-03-10"}, true},
		{"legacy date format", Request{Date: "10/03/2025"}, true},
		{"data_especifica", Request{DataEspecifica: "2025-03-11"}, true},
		{"saturday", Request{Date: "2025-03-08"}, false},
		{"sunday", Request{Date: "2025-03-09"}, false},
		{"carnival", Request{Date: "2025-03-04"}, false},
		{"good friday", Request{Date: "2025-04-18"}, false},
		{"source holiday", Request{Date: "2025-01-25"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := gate.Check(context.Background(), tt.req)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.allowed, resp.Allowed)
			assert.Equal(t, tt.allowed, resp.ShouldProceed)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestCheckDefaultsToTodayInSaoPaulo(t *testing.T) {
	gate := NewGate(nil)
	// 01:00 UTC on Tuesday is still Monday evening in São Paulo.
	gate.now = func() time.Time { return time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC) }

	resp := gate.Check(context.Background(), Request{})
	assert.Equal(t, "2025-03-10", resp.Date)
	assert.True(t, resp.Allowed)
}

func TestCheckFailsOpen(t *testing.T) {
	t.Run("unparsable date", func(t *testing.T) {
		resp := NewGate(nil).Check(context.Background(), Request{Date: "not-a-date", Source: "n8n"})
		assert.False(t, resp.Success)
		assert.True(t, resp.Allowed)
		assert.True(t, resp.ShouldProceed)
	})

	t.Run("source error", func(t *testing.T) {
		resp := NewGate(failingSource{}).Check(context.Background(), Request{Date: "2025-03-10"})
		assert.False(t, resp.Success)
		assert.True(t, resp.Allowed)
	})

	t.Run("panic", func(t *testing.T) {
		resp := NewGate(panickingSource{}).Check(context.Background(), Request{Date: "2025-03-10"})
		require.False(t, resp.Success)
		assert.True(t, resp.ShouldProceed)
		assert.Contains(t, resp.Message, "panic")
	})
}

type failingSource struct{}

func (failingSource) Holiday(context.Context, time.Time) (string, error) {
	return "", errors.New("connection refused")
}

type panickingSource struct{}

func (panickingSource) Holiday(context.Context, time.Time) (string, error) {
	panic("nil map")
}
