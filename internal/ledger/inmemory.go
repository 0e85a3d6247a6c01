package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is a concurrency-safe in-process Store. It provides the same
// guarantees the engine relies on from Postgres: per-row exclusive locks held
// until commit or rollback, buffered writes that become visible atomically on
// commit, a unique owning user per account and a non-negative balance check.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[int64]Account
	byUser   map[int64]int64
	reserved map[int64]struct{}
	rows     map[int64]chan struct{}
	nextID   int64

	lockTimeout time.Duration
	now         func() time.Time
}

// MemoryOption customises a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithLockTimeout bounds how long LockAccount waits for a row held by another
// transaction before giving up with ErrConflict. Zero waits until the context
// is done.
func WithLockTimeout(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.lockTimeout = d }
}

// NewInMemory creates an empty in-memory store.
func NewInMemory(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		accounts: make(map[int64]Account),
		byUser:   make(map[int64]int64),
		reserved: make(map[int64]struct{}),
		rows:     make(map[int64]chan struct{}),
		nextID:   1,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindAccount returns the committed state of the selected account.
func (s *MemoryStore) FindAccount(ctx context.Context, sel Selector) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.resolveLocked(sel)
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return s.accounts[id], nil
}

// Begin starts a new transaction.
func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryTx{
		store:   s,
		locked:  make(map[int64]chan struct{}),
		pending: make(map[int64]Account),
		inserts: make(map[int64]Account),
	}, nil
}

func (s *MemoryStore) resolveLocked(sel Selector) (int64, bool) {
	if sel.UserID != 0 {
		id, ok := s.byUser[sel.UserID]
		return id, ok
	}
	_, ok := s.accounts[sel.AccountID]
	return sel.AccountID, ok
}

func (s *MemoryStore) rowLock(id int64) chan struct{} {
	row, ok := s.rows[id]
	if !ok {
		row = make(chan struct{}, 1)
		s.rows[id] = row
	}
	return row
}

type memoryTx struct {
	store   *MemoryStore
	done    bool
	locked  map[int64]chan struct{}
	pending map[int64]Account
	inserts map[int64]Account
}

func (t *memoryTx) FindAccount(ctx context.Context, sel Selector) (Account, error) {
	if t.done {
		return Account{}, ErrTxDone
	}
	if acc, ok := t.inserted(sel); ok {
		return t.visible(acc), nil
	}
	acc, err := t.store.FindAccount(ctx, sel)
	if err != nil {
		return Account{}, err
	}
	return t.visible(acc), nil
}

func (t *memoryTx) inserted(sel Selector) (Account, bool) {
	for _, acc := range t.inserts {
		if (sel.UserID != 0 && acc.UserID == sel.UserID) || (sel.AccountID != 0 && acc.ID == sel.AccountID) {
			return acc, true
		}
	}
	return Account{}, false
}

func (t *memoryTx) visible(acc Account) Account {
	if p, ok := t.pending[acc.ID]; ok {
		return p
	}
	return acc
}

func (t *memoryTx) LockAccount(ctx context.Context, sel Selector) (Account, error) {
	if t.done {
		return Account{}, ErrTxDone
	}
	if acc, ok := t.inserted(sel); ok {
		return t.visible(acc), nil
	}

	s := t.store
	s.mu.Lock()
	id, ok := s.resolveLocked(sel)
	if !ok {
		s.mu.Unlock()
		return Account{}, ErrAccountNotFound
	}
	row := s.rowLock(id)
	s.mu.Unlock()

	if _, held := t.locked[id]; !held {
		if err := t.acquire(ctx, row); err != nil {
			return Account{}, err
		}
		t.locked[id] = row
	}

	s.mu.Lock()
	acc := s.accounts[id]
	s.mu.Unlock()
	return t.visible(acc), nil
}

func (t *memoryTx) acquire(ctx context.Context, row chan struct{}) error {
	waitCtx := ctx
	if d := t.store.lockTimeout; d > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	select {
	case row <- struct{}{}:
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("lock wait timeout: %w", ErrConflict)
	}
}

func (t *memoryTx) WriteAccount(_ context.Context, account Account) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.locked[account.ID]; !ok {
		return fmt.Errorf("write account %d: %w", account.ID, ErrNotLocked)
	}
	account.UpdatedAt = t.store.now()
	if _, ok := t.inserts[account.ID]; ok {
		t.inserts[account.ID] = account
	}
	t.pending[account.ID] = account
	return nil
}

func (t *memoryTx) InsertAccount(_ context.Context, userID, balance int64) (Account, error) {
	if t.done {
		return Account{}, ErrTxDone
	}
	if balance < 0 {
		return Account{}, ErrInvalidAmount
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUser[userID]; exists {
		return Account{}, ErrAlreadyExists
	}
	if _, racing := s.reserved[userID]; racing {
		return Account{}, ErrAlreadyExists
	}
	s.reserved[userID] = struct{}{}

	now := s.now()
	acc := Account{ID: s.nextID, UserID: userID, Balance: balance, CreatedAt: now, UpdatedAt: now}
	s.nextID++

	row := s.rowLock(acc.ID)
	row <- struct{}{}
	t.locked[acc.ID] = row
	t.inserts[acc.ID] = acc
	return acc, nil
}

func (t *memoryTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		_ = t.Rollback(ctx)
		return err
	}
	s := t.store
	s.mu.Lock()
	for _, acc := range t.pending {
		if acc.Balance < 0 {
			s.mu.Unlock()
			_ = t.Rollback(ctx)
			return ErrInsufficientFunds
		}
	}
	for id, acc := range t.inserts {
		if p, ok := t.pending[id]; ok {
			acc = p
		}
		s.accounts[id] = acc
		s.byUser[acc.UserID] = id
		delete(s.reserved, acc.UserID)
	}
	for id, acc := range t.pending {
		s.accounts[id] = acc
	}
	s.mu.Unlock()

	t.finish()
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	s := t.store
	s.mu.Lock()
	for _, acc := range t.inserts {
		delete(s.reserved, acc.UserID)
	}
	s.mu.Unlock()
	t.finish()
	return nil
}

func (t *memoryTx) finish() {
	t.done = true
	for id, row := range t.locked {
		<-row
		delete(t.locked, id)
	}
	t.pending = nil
	t.inserts = nil
}
