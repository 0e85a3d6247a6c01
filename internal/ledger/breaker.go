package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig tunes the circuit breaker placed in front of a Store.
type BreakerConfig struct {
	MaxRequests         uint32        // probes allowed while half-open
	Interval            time.Duration // closed-state counter reset period
	Timeout             time.Duration // open duration before probing
	ConsecutiveFailures uint32        // trips the breaker
}

// DefaultBreakerConfig returns defaults suited to a primary database.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: 10 * time.Second, ConsecutiveFailures: 5}
}

// GuardedStore fails fast with StoreUnavailable while the wrapped store is
// known to be down, instead of letting every request wait on a dead pool.
// Only infrastructure failures count against the breaker; business results
// such as a missing account or a conflict prove the store is reachable.
type GuardedStore struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker
}

// NewGuardedStore wraps inner with a circuit breaker.
func NewGuardedStore(inner Store, cfg BreakerConfig, logger *slog.Logger) *GuardedStore {
	settings := gobreaker.Settings{
		Name:        "account-store",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrConflict) || isContextErr(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state changed",
					slog.String("name", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			}
		},
	}
	return &GuardedStore{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// FindAccount reads through the breaker.
func (g *GuardedStore) FindAccount(ctx context.Context, sel Selector) (Account, error) {
	res, err := g.breaker.Execute(func() (any, error) {
		return g.inner.FindAccount(ctx, sel)
	})
	if err != nil {
		return Account{}, g.classify(err)
	}
	return res.(Account), nil
}

// Begin opens a transaction through the breaker. The transaction itself is
// not guarded: once begun, its failures are handled by the Runner.
func (g *GuardedStore) Begin(ctx context.Context) (Tx, error) {
	res, err := g.breaker.Execute(func() (any, error) {
		return g.inner.Begin(ctx)
	})
	if err != nil {
		return nil, g.classify(err)
	}
	return res.(Tx), nil
}

// State reports the breaker state for health checks.
func (g *GuardedStore) State() string {
	return g.breaker.State().String()
}

func (g *GuardedStore) classify(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return newError(CodeStoreUnavailable, "account store", fmt.Errorf("circuit %s: %w", g.breaker.State(), err))
	}
	return err
}
