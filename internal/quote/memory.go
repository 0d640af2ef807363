package quote

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ucsindex/engine/internal/domain"
)

type quoteKey struct {
	assetID string
	date    time.Time
}

func keyOf(assetID string, date time.Time) quoteKey {
	return quoteKey{assetID: assetID, date: domain.NormalizeDate(date)}
}

// MemoryRepository is an in-process Repository. Transactions are serialized and work on
// a staged copy that replaces the committed state only when the callback succeeds.
type MemoryRepository struct {
	mu     sync.RWMutex
	quotes map[quoteKey]domain.Quote
}

// NewMemoryRepository creates an empty in-memory quote repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{quotes: make(map[quoteKey]domain.Quote)}
}

// Put stores q directly, outside any transaction.
func (r *MemoryRepository) Put(q domain.Quote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := keyOf(q.AssetID, q.Date)
	q.Date = k.date
	r.quotes[k] = cloneQuote(q)
}

func (r *MemoryRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := make(map[quoteKey]domain.Quote, len(r.quotes))
	for k, q := range r.quotes {
		staged[k] = cloneQuote(q)
	}

	if err := fn(ctx, &memoryTx{quotes: staged}); err != nil {
		return err
	}
	r.quotes = staged
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, assetID string, date time.Time) (domain.Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return get(r.quotes, assetID, date)
}

func (r *MemoryRepository) LatestOnOrBefore(_ context.Context, assetID string, date time.Time) (domain.Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return latest(r.quotes, assetID, date)
}

func (r *MemoryRepository) ListByDate(_ context.Context, date time.Time) ([]domain.Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	day := domain.NormalizeDate(date)
	var quotes []domain.Quote
	for k, q := range r.quotes {
		if k.date.Equal(day) {
			quotes = append(quotes, cloneQuote(q))
		}
	}
	slices.SortFunc(quotes, func(a, b domain.Quote) int {
		if a.AssetID < b.AssetID {
			return -1
		}
		if a.AssetID > b.AssetID {
			return 1
		}
		return 0
	})
	return quotes, nil
}

type memoryTx struct {
	quotes map[quoteKey]domain.Quote
}

func (t *memoryTx) GetForUpdate(_ context.Context, assetID string, date time.Time) (domain.Quote, error) {
	return get(t.quotes, assetID, date)
}

func (t *memoryTx) LatestOnOrBefore(_ context.Context, assetID string, date time.Time) (domain.Quote, error) {
	return latest(t.quotes, assetID, date)
}

func (t *memoryTx) Create(_ context.Context, q domain.Quote) error {
	k := keyOf(q.AssetID, q.Date)
	if _, exists := t.quotes[k]; exists {
		return fmt.Errorf("creating quote %s: already exists for %s", q.AssetID, domain.FormatISODate(k.date))
	}
	q.Date = k.date
	t.quotes[k] = cloneQuote(q)
	return nil
}

func (t *memoryTx) Update(_ context.Context, q domain.Quote) error {
	k := keyOf(q.AssetID, q.Date)
	if _, exists := t.quotes[k]; !exists {
		return fmt.Errorf("updating quote %s: %w", q.AssetID, ErrNotFound)
	}
	q.Date = k.date
	t.quotes[k] = cloneQuote(q)
	return nil
}

func get(quotes map[quoteKey]domain.Quote, assetID string, date time.Time) (domain.Quote, error) {
	q, ok := quotes[keyOf(assetID, date)]
	if !ok {
		return domain.Quote{}, ErrNotFound
	}
	return cloneQuote(q), nil
}

func latest(quotes map[quoteKey]domain.Quote, assetID string, date time.Time) (domain.Quote, error) {
	day := domain.NormalizeDate(date)
	var (
		best  domain.Quote
		found bool
		when  time.Time
	)
	for k, q := range quotes {
		if k.assetID != assetID || k.date.After(day) {
			continue
		}
		if !found || k.date.After(when) {
			best, when, found = q, k.date, true
		}
	}
	if !found {
		return domain.Quote{}, ErrNotFound
	}
	return cloneQuote(best), nil
}

func cloneQuote(q domain.Quote) domain.Quote {
	q.Components = maps.Clone(q.Components)
	q.Conversions = maps.Clone(q.Conversions)
	return q
}
