package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes the store translates into ledger semantics.
const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

const accountColumns = `id, user_id, balance, created_at, updated_at`

// PostgresStore keeps accounts in the accounts table created by the
// infra migrations. Locks are Postgres row locks (SELECT ... FOR UPDATE).
type PostgresStore struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresStore constructs a Postgres-backed store. lockTimeout bounds
// every row-lock wait inside a transaction; zero leaves the server default.
func NewPostgresStore(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

// FindAccount reads committed account state.
func (s *PostgresStore) FindAccount(ctx context.Context, sel Selector) (Account, error) {
	query, arg := selectAccount(sel, false)
	return scanAccount(s.db.QueryRow(ctx, query, arg))
}

// Begin opens a READ COMMITTED transaction; row locks provide the isolation
// the engine needs.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	if s.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
	}
	return &postgresTx{tx: tx, locked: make(map[int64]struct{})}, nil
}

type postgresTx struct {
	tx     pgx.Tx
	locked map[int64]struct{}
}

func (t *postgresTx) FindAccount(ctx context.Context, sel Selector) (Account, error) {
	query, arg := selectAccount(sel, false)
	return scanAccount(t.tx.QueryRow(ctx, query, arg))
}

func (t *postgresTx) LockAccount(ctx context.Context, sel Selector) (Account, error) {
	query, arg := selectAccount(sel, true)
	acc, err := scanAccount(t.tx.QueryRow(ctx, query, arg))
	if err != nil {
		return Account{}, err
	}
	t.locked[acc.ID] = struct{}{}
	return acc, nil
}

func (t *postgresTx) WriteAccount(ctx context.Context, account Account) error {
	if _, ok := t.locked[account.ID]; !ok {
		return fmt.Errorf("write account %d: %w", account.ID, ErrNotLocked)
	}
	tag, err := t.tx.Exec(ctx, `UPDATE accounts SET balance = $2, updated_at = now() WHERE id = $1`, account.ID, account.Balance)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (t *postgresTx) InsertAccount(ctx context.Context, userID, balance int64) (Account, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO accounts (user_id, balance) VALUES ($1, $2)
        RETURNING `+accountColumns, userID, balance)
	acc, err := scanAccount(row)
	if err != nil {
		return Account{}, err
	}
	t.locked[acc.ID] = struct{}{}
	return acc, nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return translate(t.tx.Commit(ctx))
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func selectAccount(sel Selector, forUpdate bool) (string, int64) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	arg := sel.AccountID
	if sel.UserID != 0 {
		query = `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`
		arg = sel.UserID
	}
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return query, arg
}

func scanAccount(row pgx.Row) (Account, error) {
	var acc Account
	if err := row.Scan(&acc.ID, &acc.UserID, &acc.Balance, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return Account{}, translate(err)
	}
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()
	return acc, nil
}

// translate maps driver errors onto the ledger's store contract.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAccountNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrAlreadyExists
		case pgCheckViolation:
			return ErrInsufficientFunds
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%s (%s): %w", pgErr.Message, pgErr.Code, ErrConflict)
		}
	}
	return err
}
