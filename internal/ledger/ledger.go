package ledger

import (
	"context"
	"time"
)

// Account is a single balance-holding record. Balance is expressed in the
// smallest currency unit and is never negative once committed.
type Account struct {
	ID        int64
	UserID    int64
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Selector picks an account either by its owning user or by its own identifier.
// Exactly one of the fields must be non-zero.
type Selector struct {
	UserID    int64
	AccountID int64
}

// ByUser selects the account owned by userID.
func ByUser(userID int64) Selector { return Selector{UserID: userID} }

// ByAccount selects the account with the given identifier.
func ByAccount(accountID int64) Selector { return Selector{AccountID: accountID} }

// Validate reports ErrInvalidSelector unless exactly one selector is set.
func (s Selector) Validate() error {
	if (s.UserID == 0) == (s.AccountID == 0) {
		return newError(CodeInvalidSelector, "lookup", nil)
	}
	return nil
}

// Querier reads committed (or, inside a transaction, transaction-visible)
// account state without taking locks.
type Querier interface {
	FindAccount(ctx context.Context, sel Selector) (Account, error)
}

// Store is the transactional account storage consumed by the engine.
type Store interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
}

// Tx is an active store transaction. Row locks taken through LockAccount are
// held until Commit or Rollback. Commit may return ErrConflict, which callers
// treat as retryable.
type Tx interface {
	Querier
	// LockAccount finds and exclusively locks the selected account in a single
	// store operation and returns its current state.
	LockAccount(ctx context.Context, sel Selector) (Account, error)
	// WriteAccount persists the balance of an account previously locked by
	// this transaction.
	WriteAccount(ctx context.Context, account Account) error
	// InsertAccount creates a new account. The store assigns ID and
	// timestamps and enforces uniqueness of UserID.
	InsertAccount(ctx context.Context, userID, balance int64) (Account, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
