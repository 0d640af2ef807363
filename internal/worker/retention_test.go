package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bsm/redislock"
)

type mockPurger struct {
	remaining int
	calls     atomic.Int32
	cutoffs   []time.Time
	err       error
}

func (m *mockPurger) PurgeBefore(_ context.Context, cutoff time.Time, batchSize int) (int, error) {
	m.calls.Add(1)
	m.cutoffs = append(m.cutoffs, cutoff)
	if m.err != nil {
		return 0, m.err
	}
	n := min(batchSize, m.remaining)
	m.remaining -= n
	return n, nil
}

func TestSweepPurgesInBatchesUntilShort(t *testing.T) {
	purger := &mockPurger{remaining: 25}
	w := NewRetentionWorker(purger, 90*24*time.Hour, time.Hour, 10, nil)
	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	n, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 25 {
		t.Errorf("purged = %d, want 25", n)
	}
	if got := purger.calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
	wantCutoff := now.Add(-90 * 24 * time.Hour)
	for _, c := range purger.cutoffs {
		if !c.Equal(wantCutoff) {
			t.Errorf("cutoff = %v, want %v", c, wantCutoff)
		}
	}
}

func TestSweepExactMultipleStopsOnEmptyBatch(t *testing.T) {
	purger := &mockPurger{remaining: 20}
	w := NewRetentionWorker(purger, time.Hour, time.Hour, 10, nil)

	n, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 20 {
		t.Errorf("purged = %d, want 20", n)
	}
	if got := purger.calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestSweepReturnsPurgeError(t *testing.T) {
	boom := errors.New("relation audit_log does not exist")
	w := NewRetentionWorker(&mockPurger{err: boom}, time.Hour, time.Hour, 10, nil)

	if _, err := w.Sweep(context.Background()); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

type busyLocker struct{}

func (busyLocker) Obtain(context.Context, string, time.Duration, *redislock.Options) (*redislock.Lock, error) {
	return nil, redislock.ErrNotObtained
}

func TestSweepSkipsWhenLockHeldElsewhere(t *testing.T) {
	purger := &mockPurger{remaining: 5}
	w := NewRetentionWorker(purger, time.Hour, time.Hour, 10, busyLocker{})

	n, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 || purger.calls.Load() != 0 {
		t.Errorf("sweep ran without the lock: purged=%d calls=%d", n, purger.calls.Load())
	}
}

func TestRetentionWorkerRunsAndShutdown(t *testing.T) {
	purger := &mockPurger{}
	w := NewRetentionWorker(purger, time.Hour, 50*time.Millisecond, 10, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	if got := purger.calls.Load(); got < 1 {
		t.Errorf("call count = %d, want >= 1", got)
	}
}

func TestNewRetentionWorkerGuardsNonPositiveDurations(t *testing.T) {
	w := NewRetentionWorker(&mockPurger{}, 0, 0, 10, nil)
	if w.interval != DefaultSweepInterval {
		t.Errorf("interval = %v, want %v", w.interval, DefaultSweepInterval)
	}
	if w.retention != DefaultRetention {
		t.Errorf("retention = %v, want %v", w.retention, DefaultRetention)
	}

	w = NewRetentionWorker(&mockPurger{}, -time.Hour, -time.Second, 10, nil)
	if w.interval != DefaultSweepInterval || w.retention != DefaultRetention {
		t.Errorf("negative durations kept: interval %v, retention %v", w.interval, w.retention)
	}
}

func TestRunWithZeroIntervalDoesNotPanic(t *testing.T) {
	purger := &mockPurger{}
	w := NewRetentionWorker(purger, time.Hour, 0, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
