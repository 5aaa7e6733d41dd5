package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"podscrub/internal/store"
	"podscrub/internal/testsupport"
)

type busyCodeError struct{}

func (busyCodeError) Error() string { return "statement contention" }
func (busyCodeError) Code() int     { return 5 }

func TestGuardRetriesLockedErrorsUntilSuccess(t *testing.T) {
	guard := store.NewGuard(5, time.Millisecond)

	calls := 0
	err := guard.WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry failed: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestGuardPropagatesNonContentionErrors(t *testing.T) {
	guard := store.NewGuard(5, time.Millisecond)

	boom := errors.New("UNIQUE constraint failed")
	calls := 0
	err := guard.WithRetry(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestGuardReturnsLastErrorAfterExhaustion(t *testing.T) {
	guard := store.NewGuard(3, time.Millisecond)

	busy := errors.New("database is locked")
	calls := 0
	err := guard.WithRetry(context.Background(), func() error {
		calls++
		return busy
	})
	if !errors.Is(err, busy) {
		t.Fatalf("expected busy error after exhaustion, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestGuardRecognizesResultCodes(t *testing.T) {
	guard := store.NewGuard(2, time.Millisecond)

	calls := 0
	err := guard.WithRetry(context.Background(), func() error {
		calls++
		if calls == 1 {
			return busyCodeError{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected retry after coded busy error, got %d attempts", calls)
	}
}

func TestGuardStopsWhenContextCancelled(t *testing.T) {
	guard := store.NewGuard(5, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	err := guard.WithRetry(ctx, func() error {
		calls++
		cancel()
		return errors.New("database is locked")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retry after cancellation, got %d attempts", calls)
	}
}

func TestWithWriteTxSerializesWriters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	entered := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- st.WithWriteTx(context.Background(), func(ctx context.Context, tx *store.WriteTx) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	secondStarted := make(chan struct{})
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- st.WithWriteTx(context.Background(), func(ctx context.Context, tx *store.WriteTx) error {
			close(secondStarted)
			return nil
		})
	}()

	select {
	case <-secondStarted:
		t.Fatal("second transaction began while the write lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first transaction failed: %v", err)
	}
	if err := <-secondDone; err != nil {
		t.Fatalf("second transaction failed: %v", err)
	}
	select {
	case <-secondStarted:
	case <-time.After(time.Second):
		t.Fatal("second transaction never ran after lock release")
	}
}
