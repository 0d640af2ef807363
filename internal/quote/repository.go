package quote

import (
	"context"
	"errors"
	"time"

	"github.com/ucsindex/engine/internal/domain"
)

// ErrNotFound indicates that no quote exists for the requested asset and date.
var ErrNotFound = errors.New("quote not found")

// Tx is the transactional view of the quote store used by a recalculation.
// Every read and write of one recalculation goes through the same Tx.
type Tx interface {
	GetForUpdate(ctx context.Context, assetID string, date time.Time) (domain.Quote, error)
	LatestOnOrBefore(ctx context.Context, assetID string, date time.Time) (domain.Quote, error)
	Create(ctx context.Context, q domain.Quote) error
	Update(ctx context.Context, q domain.Quote) error
}

// Repository defines persistent storage for quotes.
type Repository interface {
	// InTx runs fn inside a single atomic transaction. Either every write made through
	// the Tx is applied or none is.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, assetID string, date time.Time) (domain.Quote, error)
	LatestOnOrBefore(ctx context.Context, assetID string, date time.Time) (domain.Quote, error)
	ListByDate(ctx context.Context, date time.Time) ([]domain.Quote, error)
}
