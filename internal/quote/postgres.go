package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ucsindex/engine/internal/domain"
)

const quoteColumns = `asset_id, quote_date, ts, value, ultimo, status, source, components, conversions`

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool        *pgxpool.Pool
	maxAttempts int
	retryDelay  time.Duration
}

// NewPgRepository creates a PostgreSQL quote repository. Transactions run at SERIALIZABLE
// isolation and are retried up to maxAttempts times on serialization failures.
func NewPgRepository(pool *pgxpool.Pool, maxAttempts int, retryDelay time.Duration) *PgRepository {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &PgRepository{pool: pool, maxAttempts: maxAttempts, retryDelay: retryDelay}
}

func (r *PgRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var lastErr error
	for attempt := range r.maxAttempts {
		if attempt > 0 {
			delay := r.retryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			return fn(ctx, &pgTx{tx: tx})
		})
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
		slog.Warn("quote transaction conflict", "attempt", attempt+1, "max", r.maxAttempts, "error", err)
	}
	return &domain.TransactionConflictError{Attempts: r.maxAttempts, Err: lastErr}
}

func (r *PgRepository) Get(ctx context.Context, assetID string, date time.Time) (domain.Quote, error) {
	return getQuote(ctx, r.pool, assetID, date, false)
}

func (r *PgRepository) LatestOnOrBefore(ctx context.Context, assetID string, date time.Time) (domain.Quote, error) {
	return latestQuote(ctx, r.pool, assetID, date)
}

func (r *PgRepository) ListByDate(ctx context.Context, date time.Time) ([]domain.Quote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE quote_date = $1 ORDER BY asset_id`,
		domain.NormalizeDate(date))
	if err != nil {
		return nil, fmt.Errorf("listing quotes: %w", err)
	}
	defer rows.Close()

	var quotes []domain.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quotes: %w", err)
	}
	return quotes, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetForUpdate(ctx context.Context, assetID string, date time.Time) (domain.Quote, error) {
	return getQuote(ctx, t.tx, assetID, date, true)
}

func (t *pgTx) LatestOnOrBefore(ctx context.Context, assetID string, date time.Time) (domain.Quote, error) {
	return latestQuote(ctx, t.tx, assetID, date)
}

func (t *pgTx) Create(ctx context.Context, q domain.Quote) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO quotes (`+quoteColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.AssetID, domain.NormalizeDate(q.Date), q.Timestamp, q.Value, q.LegacyValue,
		string(q.Status), q.Source, nilIfEmpty(q.Components), nilIfEmpty(q.Conversions))
	if err != nil {
		return fmt.Errorf("creating quote %s: %w", q.AssetID, err)
	}
	return nil
}

func (t *pgTx) Update(ctx context.Context, q domain.Quote) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE quotes
		 SET ts = $3, value = $4, ultimo = $5, status = $6, source = $7, components = $8, conversions = $9
		 WHERE asset_id = $1 AND quote_date = $2`,
		q.AssetID, domain.NormalizeDate(q.Date), q.Timestamp, q.Value, q.LegacyValue,
		string(q.Status), q.Source, nilIfEmpty(q.Components), nilIfEmpty(q.Conversions))
	if err != nil {
		return fmt.Errorf("updating quote %s: %w", q.AssetID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating quote %s: %w", q.AssetID, ErrNotFound)
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getQuote(ctx context.Context, db querier, assetID string, date time.Time, forUpdate bool) (domain.Quote, error) {
	sql := `SELECT ` + quoteColumns + ` FROM quotes WHERE asset_id = $1 AND quote_date = $2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	q, err := scanQuote(db.QueryRow(ctx, sql, assetID, domain.NormalizeDate(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quote{}, ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("getting quote %s: %w", assetID, err)
	}
	return q, nil
}

func latestQuote(ctx context.Context, db querier, assetID string, date time.Time) (domain.Quote, error) {
	q, err := scanQuote(db.QueryRow(ctx,
		`SELECT `+quoteColumns+` FROM quotes
		 WHERE asset_id = $1 AND quote_date <= $2
		 ORDER BY quote_date DESC
		 LIMIT 1`, assetID, domain.NormalizeDate(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quote{}, ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("getting latest quote %s: %w", assetID, err)
	}
	return q, nil
}

func scanQuote(row pgx.Row) (domain.Quote, error) {
	var q domain.Quote
	var status string
	err := row.Scan(&q.AssetID, &q.Date, &q.Timestamp, &q.Value, &q.LegacyValue,
		&status, &q.Source, &q.Components, &q.Conversions)
	if err != nil {
		return domain.Quote{}, err
	}
	q.Status = domain.QuoteStatus(status)
	q.Date = domain.NormalizeDate(q.Date)
	return q, nil
}

func nilIfEmpty[M ~map[K]V, K comparable, V any](m M) any {
	if len(m) == 0 {
		return nil
	}
	return m
}

// isSerializationFailure reports errors PostgreSQL expects clients to retry:
// serialization_failure and deadlock_detected.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
