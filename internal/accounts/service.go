package accounts

import (
	"context"
	"errors"
	"log/slog"

	"github.com/congo-pay/acctledger/internal/ledger"
)

// Policy holds the account lifecycle settings.
type Policy struct {
	// InitialBalance is credited to every new account. Production runs with
	// zero; a non-zero seed is for test and staging environments only.
	InitialBalance int64
}

// Service creates and reads accounts. It holds no mutable state of its own.
type Service struct {
	runner *ledger.Runner
	policy Policy
	logger *slog.Logger
}

// NewService builds an account service over runner.
func NewService(runner *ledger.Runner, policy Policy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runner: runner, policy: policy, logger: logger}
}

// Create opens the single account owned by userID. A second call for the
// same user fails with ErrAlreadyExists, including when two calls race: the
// store's uniqueness on the owning user decides the winner.
func (s *Service) Create(ctx context.Context, userID int64) (ledger.Account, error) {
	if userID <= 0 {
		return ledger.Account{}, ledger.ErrInvalidSelector
	}
	if s.policy.InitialBalance < 0 {
		return ledger.Account{}, ledger.ErrInvalidAmount
	}

	_, err := ledger.Find(ctx, s.runner.Store(), ledger.ByUser(userID))
	switch {
	case err == nil:
		return ledger.Account{}, ledger.ErrAlreadyExists
	case !errors.Is(err, ledger.ErrAccountNotFound):
		return ledger.Account{}, err
	}

	var created ledger.Account
	err = s.runner.Run(ctx, "create account", func(ctx context.Context, tx ledger.Tx) error {
		acc, err := tx.InsertAccount(ctx, userID, s.policy.InitialBalance)
		if err != nil {
			return err
		}
		created = acc
		return nil
	})
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyExists) {
			s.logger.Info("account create lost race", slog.Int64("user_id", userID))
		}
		return ledger.Account{}, err
	}

	s.logger.Info("account created",
		slog.Int64("account_id", created.ID),
		slog.Int64("user_id", userID),
		slog.Int64("initial_balance", created.Balance),
	)
	return created, nil
}

// Get returns the committed state of the selected account.
func (s *Service) Get(ctx context.Context, sel ledger.Selector) (ledger.Account, error) {
	return ledger.Find(ctx, s.runner.Store(), sel)
}
