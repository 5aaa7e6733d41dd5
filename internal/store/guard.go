package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const sqliteBusyCode = 5

// Guard applies the store's two write policies: bounded retry on SQLite
// busy/locked errors, and an exclusive lock held for the duration of every
// write transaction. The lock is a plain sync.Mutex and is not reentrant;
// no code path may acquire it recursively.
type Guard struct {
	attempts int
	backoff  time.Duration
	writeMu  sync.Mutex
}

// NewGuard builds a guard retrying up to attempts times, doubling the delay
// after each failed attempt starting from backoff.
func NewGuard(attempts int, backoff time.Duration) *Guard {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	return &Guard{attempts: attempts, backoff: backoff}
}

// Attempts returns the configured retry bound.
func (g *Guard) Attempts() int {
	return g.attempts
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// WithRetry runs op, retrying on busy/locked errors with exponential backoff
// (backoff, 2x, 4x, ...). Non-contention errors propagate immediately; after
// the final attempt the last error is returned unchanged.
func (g *Guard) WithRetry(ctx context.Context, op func() error) error {
	ctx = ensureContext(ctx)
	delay := g.backoff
	var lastErr error
	for attempt := 0; attempt < g.attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isBusy(lastErr) || attempt == g.attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return lastErr
}

// WriteTx carries an open write transaction. Values are obtainable only
// through Store.WithWriteTx, so every mutation path inherits both guard
// policies.
type WriteTx struct {
	tx *sql.Tx
}

// ExecContext runs a statement inside the write transaction.
func (w *WriteTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return w.tx.ExecContext(ctx, query, args...)
}

// QueryContext runs a query inside the write transaction.
func (w *WriteTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return w.tx.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query inside the write transaction.
func (w *WriteTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return w.tx.QueryRowContext(ctx, query, args...)
}

// WithWriteTx runs fn inside one write transaction under both guard policies:
// the exclusive write lock for the duration of the call, and busy-retry
// around the begin/fn/commit cycle. Every exit short of a commit rolls back,
// including a panic unwinding out of fn: an abandoned open transaction would
// hold SQLite's write lock and wedge every later writer. A failed attempt
// rolls back before the retry, so fn must be safe to run more than once.
func (s *Store) WithWriteTx(ctx context.Context, fn func(ctx context.Context, tx *WriteTx) error) error {
	ctx = ensureContext(ctx)
	s.guard.writeMu.Lock()
	defer s.guard.writeMu.Unlock()

	return s.guard.WithRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin write tx: %w", err)
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		if err := fn(ctx, &WriteTx{tx: tx}); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit write tx: %w", err)
		}
		committed = true
		return nil
	})
}
