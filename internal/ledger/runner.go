package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/congo-pay/acctledger/internal/ledger"

// RetryPolicy bounds how a Runner re-executes a transaction after a store
// conflict.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// BaseDelay is the initial backoff interval. Later intervals grow
	// exponentially and every interval is jittered.
	BaseDelay time.Duration
	// Timeout, when positive, caps the total time of one Run including
	// lock waits and backoff sleeps.
	Timeout time.Duration
}

// DefaultRetryPolicy returns the production defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 25 * time.Millisecond, Timeout: 5 * time.Second}
}

// TxFunc is one attempt of a unit of work. It must perform every read it
// depends on through tx: a retried attempt starts again from a fresh
// transaction.
type TxFunc func(ctx context.Context, tx Tx) error

// Runner executes units of work against a Store with a single commit
// boundary, rolling back on any failure and retrying the whole unit on
// conflicts.
type Runner struct {
	store  Store
	policy RetryPolicy
	logger *slog.Logger
	tracer trace.Tracer
}

// NewRunner builds a Runner over store.
func NewRunner(store Store, policy RetryPolicy, logger *slog.Logger) *Runner {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{store: store, policy: policy, logger: logger, tracer: otel.Tracer(tracerName)}
}

// Store returns the underlying store for reads outside a transaction.
func (r *Runner) Store() Store { return r.store }

// Run executes fn inside a transaction and commits it. Business rejections
// returned by fn are passed through untouched and never retried. Conflicts
// restart fn from scratch, up to the policy's retry budget; when the budget
// is exhausted, or the store fails in any other way, Run returns a
// StoreUnavailable error wrapping the cause.
func (r *Runner) Run(ctx context.Context, op string, fn TxFunc) error {
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}

	ctx, span := r.tracer.Start(ctx, "ledger."+op)
	defer span.End()

	attempts := 0
	operation := func() error {
		attempts++
		err := r.attempt(ctx, fn)
		span.SetAttributes(attribute.Int("ledger.attempts", attempts))
		if err == nil {
			return nil
		}
		if IsBusiness(err) || !errors.Is(err, ErrConflict) || isContextErr(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		r.logger.Warn("ledger transaction conflict, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempts),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)
	}

	err := backoff.RetryNotify(operation, r.retrySchedule(ctx), notify)
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}
	if IsBusiness(err) {
		span.SetAttributes(attribute.String("ledger.code", string(CodeOf(err))))
		return err
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, ErrConflict) {
		err = fmt.Errorf("retries exhausted after %d attempts: %w", attempts, err)
	}
	return newError(CodeStoreUnavailable, op, err)
}

// retrySchedule is the jittered exponential backoff between attempts, capped
// at MaxRetries retries and stopped when ctx is done.
func (r *Runner) retrySchedule(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.BaseDelay
	// The run timeout bounds elapsed time.
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.policy.MaxRetries)), ctx)
}

func (r *Runner) attempt(ctx context.Context, fn TxFunc) (err error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			// A context-free rollback still runs when ctx has been cancelled,
			// so locks are released instead of waiting for the connection to die.
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				r.logger.Debug("ledger rollback failed", slog.Any("error", rbErr))
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
