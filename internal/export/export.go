package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ucsindex/engine/internal/dependency"
	"github.com/ucsindex/engine/internal/domain"
	"github.com/ucsindex/engine/internal/quote"
	"github.com/ucsindex/engine/internal/recalc"
)

// BoardRow is one asset line of the published board.
type BoardRow struct {
	Asset       domain.AssetDependency
	Value       decimal.Decimal
	Status      domain.QuoteStatus
	Change      *decimal.Decimal // relative to the previous stored quote
	Conversions map[string]decimal.Decimal
}

// BoardWriter publishes board rows to a spreadsheet destination.
type BoardWriter interface {
	WriteBoard(ctx context.Context, date time.Time, rows []BoardRow) error
	UpsertHistory(ctx context.Context, date time.Time, rows []BoardRow) error
}

// Service rebuilds the board for a date and hands it to a BoardWriter.
type Service struct {
	registry *dependency.Registry
	quotes   quote.Repository
	writer   BoardWriter
}

// NewService creates a new export Service.
func NewService(registry *dependency.Registry, quotes quote.Repository, writer BoardWriter) *Service {
	return &Service{registry: registry, quotes: quotes, writer: writer}
}

// AfterRecalculation publishes the board for date. Implements recalc.Hook.
func (s *Service) AfterRecalculation(ctx context.Context, date time.Time, result recalc.Result) error {
	if err := s.Publish(ctx, date); err != nil {
		return fmt.Errorf("publishing board for recalculation %s: %w", result.ID, err)
	}
	return nil
}

// Publish rewrites the board with every quote stored for date and appends a history row.
func (s *Service) Publish(ctx context.Context, date time.Time) error {
	rows, err := s.Rows(ctx, date)
	if err != nil {
		return err
	}
	if err := s.writer.WriteBoard(ctx, date, rows); err != nil {
		return fmt.Errorf("writing board: %w", err)
	}
	if err := s.writer.UpsertHistory(ctx, date, rows); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	slog.Info("export: board published", "date", domain.FormatISODate(date), "rows", len(rows))
	return nil
}

// Rows builds the board rows for date in registry order. Assets without a quote on date
// are skipped.
func (s *Service) Rows(ctx context.Context, date time.Time) ([]BoardRow, error) {
	quotes, err := s.quotes.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("listing quotes: %w", err)
	}
	byID := make(map[string]domain.Quote, len(quotes))
	for _, q := range quotes {
		byID[q.AssetID] = q
	}

	previousDay := domain.NormalizeDate(date).AddDate(0, 0, -1)
	var rows []BoardRow
	for _, a := range s.registry.All() {
		q, ok := byID[a.ID]
		if !ok {
			continue
		}
		row := BoardRow{Asset: a, Value: q.Value, Status: q.Status, Conversions: q.Conversions}

		prev, err := s.quotes.LatestOnOrBefore(ctx, a.ID, previousDay)
		switch {
		case err == nil:
			row.Change = computeChange(q.Value, prev.Value)
		case !errors.Is(err, quote.ErrNotFound):
			slog.Warn("export: previous quote unavailable", "asset", a.ID, "error", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// computeChange returns (current - previous) / previous, or nil if previous is zero.
func computeChange(current, previous decimal.Decimal) *decimal.Decimal {
	if previous.IsZero() {
		return nil
	}
	pct := current.Sub(previous).Div(previous)
	return &pct
}
