package ledger

import (
	"context"
	"sync/atomic"
)

// SeedBalance is a test helper that overwrites the committed balance of an
// account when using the in-memory store. It bypasses locking and must not
// run concurrently with transactions touching the same account.
func SeedBalance(s Store, accountID, amount int64) {
	mem, ok := s.(*MemoryStore)
	if !ok {
		return
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	if acc, exists := mem.accounts[accountID]; exists {
		acc.Balance = amount
		mem.accounts[accountID] = acc
	}
}

// TotalBalance is a test helper returning the sum of all committed balances
// of an in-memory store.
func TotalBalance(s Store) int64 {
	mem, ok := s.(*MemoryStore)
	if !ok {
		return 0
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	var total int64
	for _, acc := range mem.accounts {
		total += acc.Balance
	}
	return total
}

// ConflictingStore wraps a Store and makes the next Failures commits fail
// with ErrConflict after rolling the underlying transaction back. It is a
// test helper for exercising retry paths.
type ConflictingStore struct {
	Store
	failures atomic.Int64
	commits  atomic.Int64
}

// NewConflictingStore wraps inner so that the first failures commits conflict.
func NewConflictingStore(inner Store, failures int) *ConflictingStore {
	s := &ConflictingStore{Store: inner}
	s.failures.Store(int64(failures))
	return s
}

// Commits reports how many commits were attempted.
func (s *ConflictingStore) Commits() int64 { return s.commits.Load() }

// Begin wraps the inner transaction.
func (s *ConflictingStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &conflictingTx{Tx: tx, store: s}, nil
}

type conflictingTx struct {
	Tx
	store *ConflictingStore
}

func (t *conflictingTx) Commit(ctx context.Context) error {
	t.store.commits.Add(1)
	if t.store.failures.Add(-1) >= 0 {
		_ = t.Tx.Rollback(ctx)
		return ErrConflict
	}
	return t.Tx.Commit(ctx)
}
