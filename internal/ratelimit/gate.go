package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrGateTimeout reports that no concurrency slot opened within the
// configured window. Callers receive a definitive failure instead of
// queueing indefinitely behind slow calls.
var ErrGateTimeout = errors.New("timed out waiting for a concurrency slot")

// Gate bounds the number of simultaneously in-flight outbound calls.
type Gate struct {
	sem     *semaphore.Weighted
	slots   int64
	timeout time.Duration
}

// NewGate builds a gate with the given slot count and acquisition timeout.
func NewGate(maxConcurrent int, timeout time.Duration) *Gate {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gate{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		slots:   int64(maxConcurrent),
		timeout: timeout,
	}
}

// Acquire claims one slot, waiting at most the gate's timeout. The returned
// release function is safe to call more than once.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(waitCtx, 1); err != nil {
		// A parent cancellation surfaces as-is; only the gate's own
		// deadline converts to ErrGateTimeout.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrGateTimeout
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { g.sem.Release(1) })
	}, nil
}

// Slots reports the configured concurrency bound.
func (g *Gate) Slots() int {
	return int(g.slots)
}
