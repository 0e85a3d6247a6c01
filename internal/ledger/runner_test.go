package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, Timeout: time.Second}
}

func debit(accountID, amount int64) TxFunc {
	return func(ctx context.Context, tx Tx) error {
		acc, err := Lock(ctx, tx, ByAccount(accountID))
		if err != nil {
			return err
		}
		_, err = ApplyDelta(ctx, tx, acc, -amount)
		return err
	}
}

func TestRunner_CommitsOnce(t *testing.T) {
	mem := NewInMemory()
	acc := createAccount(t, mem, 1, 100)
	store := NewConflictingStore(mem, 0)
	r := NewRunner(store, testPolicy(), nil)

	if err := r.Run(context.Background(), "debit", debit(acc.ID, 30)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := store.Commits(); got != 1 {
		t.Fatalf("expected 1 commit, got %d", got)
	}
	if got := committedBalance(t, mem, acc.ID); got != 70 {
		t.Fatalf("expected balance 70, got %d", got)
	}
}

func TestRunner_RetriesConflicts(t *testing.T) {
	mem := NewInMemory()
	acc := createAccount(t, mem, 1, 100)
	store := NewConflictingStore(mem, 2)
	r := NewRunner(store, testPolicy(), nil)

	if err := r.Run(context.Background(), "debit", debit(acc.ID, 30)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := store.Commits(); got != 3 {
		t.Fatalf("expected 3 commits, got %d", got)
	}
	// Rolled-back attempts leave no trace.
	if got := committedBalance(t, mem, acc.ID); got != 70 {
		t.Fatalf("expected balance 70, got %d", got)
	}
}

func TestRunner_ExhaustedRetries(t *testing.T) {
	mem := NewInMemory()
	acc := createAccount(t, mem, 1, 100)
	store := NewConflictingStore(mem, 10)
	r := NewRunner(store, testPolicy(), nil)

	err := r.Run(context.Background(), "debit", debit(acc.ID, 30))
	if CodeOf(err) != CodeStoreUnavailable || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected store unavailable wrapping conflict, got %v", err)
	}
	if got := store.Commits(); got != 4 {
		t.Fatalf("expected 4 commits, got %d", got)
	}
	if got := committedBalance(t, mem, acc.ID); got != 100 {
		t.Fatalf("expected balance 100, got %d", got)
	}
}

func TestRunner_NoRetriesWhenBudgetIsZero(t *testing.T) {
	mem := NewInMemory()
	acc := createAccount(t, mem, 1, 100)
	store := NewConflictingStore(mem, 1)
	r := NewRunner(store, RetryPolicy{BaseDelay: time.Millisecond, Timeout: time.Second}, nil)

	if err := r.Run(context.Background(), "debit", debit(acc.ID, 30)); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := store.Commits(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestRunner_BusinessErrorsAreNotRetried(t *testing.T) {
	mem := NewInMemory()
	acc := createAccount(t, mem, 1, 10)
	store := NewConflictingStore(mem, 0)
	r := NewRunner(store, testPolicy(), nil)

	attempts := 0
	err := r.Run(context.Background(), "debit", func(ctx context.Context, tx Tx) error {
		attempts++
		return debit(acc.ID, 30)(ctx, tx)
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if CodeOf(err) != CodeInsufficientFunds {
		t.Fatalf("business error was rewrapped: %v", err)
	}
	if attempts != 1 || store.Commits() != 0 {
		t.Fatalf("expected one attempt and no commit, got %d attempts and %d commits", attempts, store.Commits())
	}
}

func TestRunner_RollsBackOnError(t *testing.T) {
	mem := NewInMemory()
	acc := createAccount(t, mem, 1, 100)
	r := NewRunner(mem, testPolicy(), nil)

	cause := errors.New("boom")
	err := r.Run(context.Background(), "debit", func(ctx context.Context, tx Tx) error {
		if err := debit(acc.ID, 30)(ctx, tx); err != nil {
			return err
		}
		return cause
	})
	if CodeOf(err) != CodeStoreUnavailable || !errors.Is(err, cause) {
		t.Fatalf("expected store unavailable wrapping cause, got %v", err)
	}
	if got := committedBalance(t, mem, acc.ID); got != 100 {
		t.Fatalf("expected balance 100, got %d", got)
	}

	// The lock was released by the rollback.
	if err := r.Run(context.Background(), "debit", debit(acc.ID, 30)); err != nil {
		t.Fatalf("run after rollback: %v", err)
	}
}

func TestRunner_TimeoutStopsLockWait(t *testing.T) {
	mem := NewInMemory()
	acc := createAccount(t, mem, 1, 100)

	holder, err := mem.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := holder.LockAccount(context.Background(), ByAccount(acc.ID)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer holder.Rollback(context.Background()) // nolint:errcheck

	r := NewRunner(mem, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, Timeout: 30 * time.Millisecond}, nil)
	err = r.Run(context.Background(), "debit", debit(acc.ID, 10))
	if CodeOf(err) != CodeStoreUnavailable || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected store unavailable by deadline, got %v", err)
	}
}

func TestRunner_RetrySchedule(t *testing.T) {
	base := 10 * time.Millisecond
	r := NewRunner(NewInMemory(), RetryPolicy{MaxRetries: 3, BaseDelay: base}, nil)

	schedule := r.retrySchedule(context.Background())
	// The first interval is the base delay jittered by the default
	// randomization factor of one half.
	first := schedule.NextBackOff()
	if first < base/2 || first > base*3/2 {
		t.Fatalf("first backoff %v outside [%v, %v]", first, base/2, base*3/2)
	}
	for i := 0; i < 2; i++ {
		if d := schedule.NextBackOff(); d == backoff.Stop || d <= 0 {
			t.Fatalf("retry %d: unexpected backoff %v", i+2, d)
		}
	}
	if d := schedule.NextBackOff(); d != backoff.Stop {
		t.Fatalf("expected stop after %d retries, got %v", 3, d)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if d := r.retrySchedule(ctx).NextBackOff(); d != backoff.Stop {
		t.Fatalf("expected stop on cancelled context, got %v", d)
	}
}
