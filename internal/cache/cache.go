// Package cache holds the quote read caches and the invalidation fan-out that runs after
// every successful recalculation.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ucsindex/engine/internal/domain"
)

// Invalidator drops cached values for the given assets on date.
type Invalidator interface {
	Invalidate(ctx context.Context, date time.Time, assetIDs []string) error
}

// Cache is a read-through cache for single quotes.
type Cache interface {
	Invalidator
	Get(ctx context.Context, date time.Time, assetID string) (domain.Quote, bool)
	Set(ctx context.Context, q domain.Quote)
}

// Multi invalidates every member and joins their errors.
type Multi []Invalidator

func (m Multi) Invalidate(ctx context.Context, date time.Time, assetIDs []string) error {
	var errs []error
	for _, inv := range m {
		if inv == nil {
			continue
		}
		if err := inv.Invalidate(ctx, date, assetIDs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func quoteKey(date time.Time, assetID string) string {
	return fmt.Sprintf("%s:%s", domain.FormatISODate(date), assetID)
}
