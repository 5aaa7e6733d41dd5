package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"podscrub/internal/config"
	"podscrub/internal/logging"
)

// ErrTokenCeiling reports that one call's estimated cost exceeds the
// per-call maximum. This is a validation failure, never a throttle: no
// amount of waiting makes the call admissible.
var ErrTokenCeiling = errors.New("request exceeds per-call token ceiling")

// Coordinator combines the token bucket, the per-call ceiling, and the
// concurrency gate into the single admission path every outbound LLM call
// takes.
type Coordinator struct {
	bucket    *Bucket
	gate      *Gate
	estimator *Estimator
	ceiling   int
	logger    *slog.Logger
}

// CoordinatorOption customizes a coordinator.
type CoordinatorOption func(*Coordinator)

// WithBucket substitutes the token bucket, mainly for tests with fake
// clocks.
func WithBucket(bucket *Bucket) CoordinatorOption {
	return func(c *Coordinator) {
		if bucket != nil {
			c.bucket = bucket
		}
	}
}

// WithEstimator substitutes the token estimator.
func WithEstimator(est *Estimator) CoordinatorOption {
	return func(c *Coordinator) {
		if est != nil {
			c.estimator = est
		}
	}
}

// NewCoordinator builds a coordinator from configured budgets.
func NewCoordinator(cfg config.RateLimit, model string, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second
	c := &Coordinator{
		bucket:    NewBucket(cfg.TokensPerMinute, window),
		gate:      NewGate(cfg.MaxConcurrent, time.Duration(cfg.GateTimeoutSeconds)*time.Second),
		estimator: NewEstimator(model),
		ceiling:   cfg.MaxTokensPerCall,
		logger:    logging.NewComponentLogger(logger, "ratelimit"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PrepareForCall estimates the cost of the given texts, rejects calls above
// the per-call ceiling, and waits out the trailing window when it is full.
// It returns the estimate charged to the bucket so the caller can reconcile
// against actual usage afterwards.
func (c *Coordinator) PrepareForCall(ctx context.Context, texts ...string) (int, error) {
	estimated := c.estimator.Estimate(texts...)
	if c.ceiling > 0 && estimated > c.ceiling {
		return 0, fmt.Errorf("estimated %d tokens exceeds ceiling %d: %w", estimated, c.ceiling, ErrTokenCeiling)
	}

	start := time.Now()
	if err := c.bucket.WaitIfNeeded(ctx, estimated); err != nil {
		return 0, err
	}
	if waited := time.Since(start); waited > time.Second {
		c.logger.Info("throttled by token window",
			logging.Int("estimated_tokens", estimated),
			logging.Duration("waited", waited))
	}
	return estimated, nil
}

// AcquireSlot claims a concurrency slot for the duration of one call.
func (c *Coordinator) AcquireSlot(ctx context.Context) (func(), error) {
	return c.gate.Acquire(ctx)
}

// ReconcileUsage charges the window for usage beyond the original estimate.
func (c *Coordinator) ReconcileUsage(estimated, actual int) {
	if actual > estimated {
		c.logger.Debug("usage exceeded estimate",
			logging.Int("estimated_tokens", estimated),
			logging.Int("actual_tokens", actual))
	}
	c.bucket.Reconcile(estimated, actual)
}

// Stats reports current window usage.
func (c *Coordinator) Stats() Stats {
	return c.bucket.Stats()
}
