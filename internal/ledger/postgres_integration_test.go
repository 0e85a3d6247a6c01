//go:build integration

package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/congo-pay/acctledger/internal/infra"
	"github.com/congo-pay/acctledger/internal/ledger"
	"github.com/congo-pay/acctledger/internal/logging"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, infra.Migrate(dsn, logging.Discard()))

	pool, err := infra.NewPostgresPool(ctx, dsn, infra.PoolOptions{MaxConns: 10})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func insert(t *testing.T, s ledger.Store, userID, balance int64) ledger.Account {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	acc, err := tx.InsertAccount(ctx, userID, balance)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	return acc
}

func TestIntegration_PostgresStore(t *testing.T) {
	pool := setupPostgres(t)
	store := ledger.NewPostgresStore(pool, time.Second)
	ctx := context.Background()

	a := insert(t, store, 1, 100)
	b := insert(t, store, 2, 0)

	t.Run("duplicate user", func(t *testing.T) {
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx) // nolint:errcheck
		_, err = tx.InsertAccount(ctx, 1, 0)
		assert.ErrorIs(t, err, ledger.ErrAlreadyExists)
	})

	t.Run("find", func(t *testing.T) {
		got, err := ledger.Find(ctx, store, ledger.ByUser(2))
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)

		_, err = ledger.Find(ctx, store, ledger.ByAccount(b.ID+1000))
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	})

	t.Run("check constraint", func(t *testing.T) {
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx) // nolint:errcheck
		locked, err := tx.LockAccount(ctx, ledger.ByAccount(a.ID))
		require.NoError(t, err)
		locked.Balance = -1
		assert.ErrorIs(t, tx.WriteAccount(ctx, locked), ledger.ErrInsufficientFunds)
	})

	t.Run("concurrent transfers conserve money", func(t *testing.T) {
		runner := ledger.NewRunner(store, ledger.DefaultRetryPolicy(), logging.Discard())
		move := func(from, to, amount int64) error {
			return runner.Run(ctx, "transfer", func(ctx context.Context, tx ledger.Tx) error {
				locked, err := ledger.LockInOrder(ctx, tx, from, to)
				if err != nil {
					return err
				}
				if _, err := ledger.ApplyDelta(ctx, tx, locked[from], -amount); err != nil {
					return err
				}
				_, err = ledger.ApplyDelta(ctx, tx, locked[to], amount)
				return err
			})
		}

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); _ = move(a.ID, b.ID, 3) }()
			go func() { defer wg.Done(); _ = move(b.ID, a.ID, 1) }()
		}
		wg.Wait()

		ga, err := store.FindAccount(ctx, ledger.ByAccount(a.ID))
		require.NoError(t, err)
		gb, err := store.FindAccount(ctx, ledger.ByAccount(b.ID))
		require.NoError(t, err)
		assert.Equal(t, int64(100), ga.Balance+gb.Balance)
		assert.GreaterOrEqual(t, ga.Balance, int64(0))
		assert.GreaterOrEqual(t, gb.Balance, int64(0))
	})
}
