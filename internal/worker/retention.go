package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
)

const retentionLockKey = "ucs:lock:audit-retention"

// Defaults applied when a non-positive retention or interval is supplied.
const (
	DefaultRetention     = 5 * 365 * 24 * time.Hour
	DefaultSweepInterval = 24 * time.Hour
)

// AuditPurger deletes old audit entries in bounded batches.
type AuditPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time, batchSize int) (int, error)
}

// Locker obtains a distributed lock. *redislock.Client satisfies it.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// RetentionWorker periodically purges audit entries older than the retention window.
type RetentionWorker struct {
	purger    AuditPurger
	retention time.Duration
	interval  time.Duration
	batchSize int
	locker    Locker // optional
	now       func() time.Time
}

// NewRetentionWorker creates a new RetentionWorker. locker may be nil, in which case every
// instance sweeps.
func NewRetentionWorker(purger AuditPurger, retention, interval time.Duration, batchSize int, locker Locker) *RetentionWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	if retention <= 0 {
		slog.Warn("RetentionWorker: non-positive retention, using default", "retention", retention, "default", DefaultRetention)
		retention = DefaultRetention
	}
	if interval <= 0 {
		slog.Warn("RetentionWorker: non-positive interval, using default", "interval", interval, "default", DefaultSweepInterval)
		interval = DefaultSweepInterval
	}
	return &RetentionWorker{
		purger:    purger,
		retention: retention,
		interval:  interval,
		batchSize: batchSize,
		locker:    locker,
		now:       time.Now,
	}
}

// Run starts the retention loop. It blocks until the context is cancelled.
func (w *RetentionWorker) Run(ctx context.Context) {
	slog.Info("RetentionWorker: starting", "retention", w.retention, "interval", w.interval)

	w.sweepAndLog(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("RetentionWorker: shutting down")
			return
		case <-ticker.C:
			w.sweepAndLog(ctx)
		}
	}
}

func (w *RetentionWorker) sweepAndLog(ctx context.Context) {
	n, err := w.Sweep(ctx)
	if err != nil {
		slog.Error("RetentionWorker: sweep failed", "error", err)
		return
	}
	slog.Info("RetentionWorker: sweep completed", "purged", n)
}

// Sweep purges everything older than the retention window, one batch at a time, until a
// batch comes back short. It returns the number of entries removed.
func (w *RetentionWorker) Sweep(ctx context.Context) (int, error) {
	if w.locker != nil {
		lock, err := w.locker.Obtain(ctx, retentionLockKey, w.interval, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			slog.Info("RetentionWorker: another instance holds the sweep lock")
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("obtaining sweep lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				slog.Warn("RetentionWorker: releasing sweep lock", "error", err)
			}
		}()
	}

	cutoff := w.now().Add(-w.retention)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := w.purger.PurgeBefore(ctx, cutoff, w.batchSize)
		if err != nil {
			return total, fmt.Errorf("purging audit entries before %s: %w", cutoff.Format(time.RFC3339), err)
		}
		total += n
		if n < w.batchSize {
			return total, nil
		}
	}
}
