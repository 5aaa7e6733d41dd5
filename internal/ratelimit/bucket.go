package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of bucket usage for status displays.
type Stats struct {
	Used    int           `json:"used"`
	Limit   int           `json:"limit"`
	Percent float64       `json:"percent"`
	Window  time.Duration `json:"window"`
}

type usageEntry struct {
	at     time.Time
	tokens int
}

// Bucket tracks token usage over a trailing window. Callers declare their
// estimated cost up front; when the window is full the caller blocks until
// the oldest entry ages out, then the usage is recorded.
type Bucket struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries []usageEntry

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// BucketOption customizes a bucket, mainly for tests.
type BucketOption func(*Bucket)

// WithClock overrides the bucket's time source.
func WithClock(now func() time.Time) BucketOption {
	return func(b *Bucket) {
		if now != nil {
			b.now = now
		}
	}
}

// WithBucketSleeper overrides how waits are performed.
func WithBucketSleeper(sleep func(ctx context.Context, d time.Duration) error) BucketOption {
	return func(b *Bucket) {
		if sleep != nil {
			b.sleep = sleep
		}
	}
}

// NewBucket builds a bucket admitting at most limit tokens per trailing
// window.
func NewBucket(limit int, window time.Duration, opts ...BucketOption) *Bucket {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	b := &Bucket{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepWithContext,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitIfNeeded blocks until the window can admit tokens, then records the
// usage. An empty window always admits, even oversized requests, so a cost
// above the limit cannot livelock here; the per-call ceiling rejects such
// requests before they reach the bucket.
func (b *Bucket) WaitIfNeeded(ctx context.Context, tokens int) error {
	if tokens <= 0 {
		return nil
	}
	for {
		wait := b.tryAdmit(tokens)
		if wait == 0 {
			return nil
		}
		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// tryAdmit records the usage and returns zero when it fits; otherwise it
// returns how long until the oldest entry leaves the window.
func (b *Bucket) tryAdmit(tokens int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.pruneLocked(now)

	if len(b.entries) == 0 || b.usedLocked()+tokens <= b.limit {
		b.entries = append(b.entries, usageEntry{at: now, tokens: tokens})
		return 0
	}

	wait := b.entries[0].at.Add(b.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}

// Record adds usage without waiting. Used for post-hoc corrections when the
// provider reports more tokens than were estimated.
func (b *Bucket) Record(tokens int) {
	if tokens <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.pruneLocked(now)
	b.entries = append(b.entries, usageEntry{at: now, tokens: tokens})
}

// Reconcile feeds actual usage back into the window when it exceeded the
// estimate already charged by WaitIfNeeded.
func (b *Bucket) Reconcile(estimated, actual int) {
	if actual > estimated {
		b.Record(actual - estimated)
	}
}

// Stats reports current usage within the trailing window.
func (b *Bucket) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked(b.now())
	used := b.usedLocked()
	return Stats{
		Used:    used,
		Limit:   b.limit,
		Percent: float64(used) / float64(b.limit) * 100,
		Window:  b.window,
	}
}

func (b *Bucket) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.window)
	idx := 0
	for idx < len(b.entries) && !b.entries[idx].at.After(cutoff) {
		idx++
	}
	if idx > 0 {
		b.entries = append(b.entries[:0], b.entries[idx:]...)
	}
}

func (b *Bucket) usedLocked() int {
	total := 0
	for _, e := range b.entries {
		total += e.tokens
	}
	return total
}
