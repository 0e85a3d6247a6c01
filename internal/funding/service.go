package funding

import (
	"context"
	"log/slog"

	"github.com/congo-pay/acctledger/internal/ledger"
)

// Service moves money into and out of a single account. The external side of
// a withdrawal or deposit is settled elsewhere; here only the balance changes.
type Service struct {
	runner *ledger.Runner
	logger *slog.Logger
}

// NewService prepares a funding service.
func NewService(runner *ledger.Runner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runner: runner, logger: logger}
}

// Withdraw debits amount from the account owned by userID. It fails with
// ErrInsufficientFunds, leaving the balance unchanged, when the account holds
// less than amount.
func (s *Service) Withdraw(ctx context.Context, userID, amount int64) error {
	return s.apply(ctx, "withdraw", userID, amount, -amount)
}

// Deposit credits amount to the account owned by userID.
func (s *Service) Deposit(ctx context.Context, userID, amount int64) error {
	return s.apply(ctx, "deposit", userID, amount, amount)
}

// Balance reads the committed balance of the account owned by userID.
func (s *Service) Balance(ctx context.Context, userID int64) (ledger.Account, error) {
	return ledger.Find(ctx, s.runner.Store(), ledger.ByUser(userID))
}

func (s *Service) apply(ctx context.Context, op string, userID, amount, delta int64) error {
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	if userID <= 0 {
		return ledger.ErrInvalidSelector
	}

	var updated ledger.Account
	err := s.runner.Run(ctx, op, func(ctx context.Context, tx ledger.Tx) error {
		acc, err := ledger.Lock(ctx, tx, ledger.ByUser(userID))
		if err != nil {
			return err
		}
		updated, err = ledger.ApplyDelta(ctx, tx, acc, delta)
		return err
	})
	if err != nil {
		s.logger.Info(op+" aborted",
			slog.Int64("user_id", userID),
			slog.Int64("amount", amount),
			slog.String("code", string(ledger.CodeOf(err))),
			slog.Any("error", err),
		)
		return ledger.AsTransferFailed(op, err)
	}

	s.logger.Info(op+" committed",
		slog.Int64("account_id", updated.ID),
		slog.Int64("user_id", userID),
		slog.Int64("amount", amount),
	)
	return nil
}
