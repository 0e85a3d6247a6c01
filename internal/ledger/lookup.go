package ledger

import (
	"context"
	"errors"
	"slices"
)

// Find resolves the account chosen by sel. A missing account is reported as
// ErrAccountNotFound; any other failure of q is reported as StoreUnavailable.
func Find(ctx context.Context, q Querier, sel Selector) (Account, error) {
	if err := sel.Validate(); err != nil {
		return Account{}, err
	}
	acc, err := q.FindAccount(ctx, sel)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, newError(CodeAccountNotFound, "lookup", nil)
		}
		return Account{}, unavailable("lookup", err)
	}
	return acc, nil
}

// Lock finds and exclusively locks the selected account inside tx. Store
// errors other than not-found are returned unchanged so that a conflict stays
// visible to the Runner.
func Lock(ctx context.Context, tx Tx, sel Selector) (Account, error) {
	if err := sel.Validate(); err != nil {
		return Account{}, err
	}
	acc, err := tx.LockAccount(ctx, sel)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, newError(CodeAccountNotFound, "lock", nil)
		}
		return Account{}, err
	}
	return acc, nil
}

// LockInOrder locks every account in ids in ascending identifier order and
// returns them keyed by id. Every multi-account operation must lock through
// here: a single total order over identifiers is what keeps two transactions
// touching the same pair of accounts from waiting on each other.
func LockInOrder(ctx context.Context, tx Tx, ids ...int64) (map[int64]Account, error) {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	locked := make(map[int64]Account, len(ordered))
	for _, id := range ordered {
		acc, err := Lock(ctx, tx, ByAccount(id))
		if err != nil {
			return nil, err
		}
		locked[id] = acc
	}
	return locked, nil
}
