// Package calendar decides whether the external pipeline should run on a given day.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ucsindex/engine/internal/domain"
)

// saoPaulo is the market's local time. Brazil has not observed daylight saving since 2019.
var saoPaulo = time.FixedZone("BRT", -3*60*60)

// HolidaySource supplies holidays beyond the national calendar.
type HolidaySource interface {
	// Holiday returns the holiday name for date, or "" when date is not a holiday.
	Holiday(ctx context.Context, date time.Time) (string, error)
}

// Request asks whether processing may run. Date wins over DataEspecifica; when both are
// empty the current day in São Paulo is used.
type Request struct {
	Date           string `json:"date"`
	DataEspecifica string `json:"data_especifica"`
	Source         string `json:"source"`
}

// Response tells the caller whether to proceed.
type Response struct {
	Success       bool      `json:"success"`
	Allowed       bool      `json:"allowed"`
	Message       string    `json:"message"`
	ShouldProceed bool      `json:"shouldProceed"`
	Date          string    `json:"date,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Gate is the business-day check. It fails open: any internal error allows processing.
type Gate struct {
	source HolidaySource
	now    func() time.Time
}

// NewGate creates a gate. source may be nil.
func NewGate(source HolidaySource) *Gate {
	return &Gate{source: source, now: time.Now}
}

// Check evaluates req. It never returns an error.
func (g *Gate) Check(ctx context.Context, req Request) (resp Response) {
	now := g.now()
	defer func() {
		if r := recover(); r != nil {
			resp = failOpen(now, req, fmt.Errorf("panic: %v", r))
		}
	}()

	day, err := g.resolveDate(req, now)
	if err != nil {
		return failOpen(now, req, err)
	}

	resp = Response{Success: true, Date: domain.FormatISODate(day), Timestamp: now}
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		resp.Message = fmt.Sprintf("%s is a weekend day (%s)", resp.Date, strings.ToLower(wd.String()))
		return resp
	}
	if name := nationalHoliday(day); name != "" {
		resp.Message = fmt.Sprintf("%s is a national holiday: %s", resp.Date, name)
		return resp
	}
	if g.source != nil {
		name, err := g.source.Holiday(ctx, day)
		if err != nil {
			return failOpen(now, req, fmt.Errorf("reading holidays: %w", err))
		}
		if name != "" {
			resp.Message = fmt.Sprintf("%s is a holiday: %s", resp.Date, name)
			return resp
		}
	}

	resp.Allowed = true
	resp.ShouldProceed = true
	resp.Message = resp.Date + " is a business day"
	return resp
}

func (g *Gate) resolveDate(req Request, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(req.Date)
	if raw == "" {
		raw = strings.TrimSpace(req.DataEspecifica)
	}
	if raw == "" {
		return domain.NormalizeDate(now.In(saoPaulo)), nil
	}
	if len(raw) > len(domain.ISODateLayout) {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return domain.NormalizeDate(t.In(saoPaulo)), nil
		}
	}
	return domain.ParseDate(raw)
}

func nationalHoliday(day time.Time) string {
	for _, h := range NationalHolidays(day.Year()) {
		if h.Date.Equal(day) {
			return h.Name
		}
	}
	return ""
}

func failOpen(now time.Time, req Request, err error) Response {
	slog.Warn("business-day check failed, allowing processing", "source", req.Source, "error", err)
	return Response{
		Success:       false,
		Allowed:       true,
		ShouldProceed: true,
		Message:       "validation error, proceeding by default: " + err.Error(),
		Timestamp:     now,
	}
}
