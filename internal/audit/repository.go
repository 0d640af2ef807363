package audit

import (
	"context"
	"time"

	"github.com/ucsindex/engine/internal/domain"
)

// Repository is the append-only audit log store.
type Repository interface {
	// InsertBatch appends all entries in one round trip.
	InsertBatch(ctx context.Context, entries []domain.AuditLogEntry) error
	// List returns entries whose target date lies in [from, to], oldest first.
	List(ctx context.Context, from, to time.Time) ([]domain.AuditLogEntry, error)
	// PurgeBefore deletes at most batchSize entries recorded before cutoff and reports how many went.
	PurgeBefore(ctx context.Context, cutoff time.Time, batchSize int) (int, error)
}
