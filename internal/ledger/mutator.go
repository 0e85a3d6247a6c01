package ledger

import (
	"context"
	"math"
)

// ApplyDelta adds delta to the balance of locked, an account the caller holds
// an exclusive lock on within tx, and writes the result through tx. It never
// commits. A debit that would take the balance below zero fails with
// ErrInsufficientFunds and a credit past math.MaxInt64 fails with
// ErrInvalidAmount wrapping ErrBalanceOverflow. Neither writes anything.
//
// The returned Account reflects the uncommitted write and must not be treated
// as the ledger's state until tx commits.
func ApplyDelta(ctx context.Context, tx Tx, locked Account, delta int64) (Account, error) {
	if delta > 0 && locked.Balance > math.MaxInt64-delta {
		return Account{}, &Error{Code: CodeInvalidAmount, Op: "apply delta", Err: ErrBalanceOverflow, Detail: "balance would overflow"}
	}
	next := locked.Balance + delta
	if delta < 0 && next < 0 {
		return Account{}, newError(CodeInsufficientFunds, "apply delta", nil)
	}

	updated := locked
	updated.Balance = next
	if err := tx.WriteAccount(ctx, updated); err != nil {
		return Account{}, err
	}
	return updated, nil
}
