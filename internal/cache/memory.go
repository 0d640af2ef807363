package cache

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/ucsindex/engine/internal/domain"
)

// DefaultTTL is how long a quote stays in the in-process cache.
const DefaultTTL = 30 * time.Second

type entry struct {
	quote     domain.Quote
	expiresAt time.Time
}

// QuoteCache is an in-process TTL cache keyed by date and asset.
type QuoteCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// NewQuoteCache creates an in-process cache. A non-positive ttl uses DefaultTTL.
func NewQuoteCache(ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &QuoteCache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (c *QuoteCache) Get(_ context.Context, date time.Time, assetID string) (domain.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[quoteKey(date, assetID)]
	if !ok || c.now().After(e.expiresAt) {
		return domain.Quote{}, false
	}
	return copyQuote(e.quote), true
}

func (c *QuoteCache) Set(_ context.Context, q domain.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[quoteKey(q.Date, q.AssetID)] = entry{
		quote:     copyQuote(q),
		expiresAt: c.now().Add(c.ttl),
	}
}

func (c *QuoteCache) Invalidate(_ context.Context, date time.Time, assetIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range assetIDs {
		delete(c.entries, quoteKey(date, id))
	}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func copyQuote(q domain.Quote) domain.Quote {
	q.Components = maps.Clone(q.Components)
	q.Conversions = maps.Clone(q.Conversions)
	return q
}
