package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ucsindex/engine/internal/domain"
)

// PgHolidaySource reads extra holidays from the holidays table.
type PgHolidaySource struct {
	pool *pgxpool.Pool
}

// NewPgHolidaySource creates a holiday source backed by PostgreSQL.
func NewPgHolidaySource(pool *pgxpool.Pool) *PgHolidaySource {
	return &PgHolidaySource{pool: pool}
}

func (s *PgHolidaySource) Holiday(ctx context.Context, date time.Time) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx,
		`SELECT name FROM holidays WHERE holiday_date = $1`,
		domain.NormalizeDate(date)).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("querying holiday: %w", err)
	}
	return name, nil
}

// StaticSource is a fixed set of holidays keyed by ISO date.
type StaticSource map[string]string

func (s StaticSource) Holiday(_ context.Context, date time.Time) (string, error) {
	return s[domain.FormatISODate(date)], nil
}
