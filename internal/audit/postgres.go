package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ucsindex/engine/internal/domain"
)

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL audit repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) InsertBatch(ctx context.Context, entries []domain.AuditLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		affected := e.AffectedAssets
		if affected == nil {
			affected = []string{}
		}
		batch.Queue(
			`INSERT INTO audit_log (id, ts, action, asset_id, asset_name, old_value, new_value, "user", affected_assets, target_date)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			e.ID, e.Timestamp, string(e.Action), e.AssetID, e.AssetName, e.OldValue, e.NewValue,
			e.User, affected, domain.NormalizeDate(e.TargetDate),
		)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting %d audit entries: %w", len(entries), err)
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, from, to time.Time) ([]domain.AuditLogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, ts, action, asset_id, asset_name, old_value, new_value, "user", affected_assets, target_date
		 FROM audit_log
		 WHERE target_date >= $1 AND target_date <= $2
		 ORDER BY ts, asset_id`,
		domain.NormalizeDate(from), domain.NormalizeDate(to))
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		var action string
		if err := rows.Scan(&e.ID, &e.Timestamp, &action, &e.AssetID, &e.AssetName,
			&e.OldValue, &e.NewValue, &e.User, &e.AffectedAssets, &e.TargetDate); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Action = domain.AuditAction(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

func (r *PgRepository) PurgeBefore(ctx context.Context, cutoff time.Time, batchSize int) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM audit_log
		 WHERE ctid IN (SELECT ctid FROM audit_log WHERE ts < $1 LIMIT $2)`,
		cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("purging audit entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
