package audit

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ucsindex/engine/internal/domain"
)

// MemoryRepository keeps the audit log in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []domain.AuditLogEntry
}

// NewMemoryRepository creates an empty in-memory audit repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) InsertBatch(_ context.Context, entries []domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		e.AffectedAssets = slices.Clone(e.AffectedAssets)
		e.TargetDate = domain.NormalizeDate(e.TargetDate)
		r.entries = append(r.entries, e)
	}
	return nil
}

func (r *MemoryRepository) List(_ context.Context, from, to time.Time) ([]domain.AuditLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	from, to = domain.NormalizeDate(from), domain.NormalizeDate(to)
	var out []domain.AuditLogEntry
	for _, e := range r.entries {
		if e.TargetDate.Before(from) || e.TargetDate.After(to) {
			continue
		}
		e.AffectedAssets = slices.Clone(e.AffectedAssets)
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b domain.AuditLogEntry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out, nil
}

func (r *MemoryRepository) PurgeBefore(_ context.Context, cutoff time.Time, batchSize int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	kept := r.entries[:0]
	for _, e := range r.entries {
		if purged < batchSize && e.Timestamp.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return purged, nil
}

// Len reports how many entries are stored.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
