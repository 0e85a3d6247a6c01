package payments

import (
	"context"
	"errors"
	"log/slog"

	"github.com/congo-pay/acctledger/internal/ledger"
	"github.com/congo-pay/acctledger/internal/notification"
)

// Phase names a step of the transfer state machine. A transfer moves
// Resolving, Locking, Validating, Mutating and ends Committed or Aborted.
// A conflict at commit restarts it from Resolving.
type Phase string

const (
	PhaseResolving  Phase = "resolving"
	PhaseLocking    Phase = "locking"
	PhaseValidating Phase = "validating"
	PhaseMutating   Phase = "mutating"
	PhaseCommitted  Phase = "committed"
	PhaseAborted    Phase = "aborted"
)

// TransferIntent asks to move Amount from the account owned by FromUserID
// to the account ToAccountID.
type TransferIntent struct {
	FromUserID  int64
	ToAccountID int64
	Amount      int64
}

// Service moves funds between two accounts atomically.
type Service struct {
	runner   *ledger.Runner
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a payment service. notifier may be nil.
func NewService(runner *ledger.Runner, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runner: runner, notifier: notifier, logger: logger}
}

// Transfer debits the sender's account and credits the destination in one
// transaction, and returns the sender's account as committed.
//
// Both rows are locked in ascending account id order whichever way the money
// flows. Business rejections come back as the matching ledger error and leave
// both balances untouched; a transfer that could not be completed by the
// store, including after exhausting its retries, fails with
// ErrTransferFailed.
func (s *Service) Transfer(ctx context.Context, in TransferIntent) (ledger.Account, error) {
	if in.Amount <= 0 {
		return ledger.Account{}, ledger.ErrInvalidAmount
	}
	if in.FromUserID <= 0 || in.ToAccountID <= 0 {
		return ledger.Account{}, ledger.ErrInvalidTransfer
	}

	phase := PhaseResolving
	var source, dest ledger.Account
	err := s.runner.Run(ctx, "transfer", func(ctx context.Context, tx ledger.Tx) error {
		phase = PhaseResolving
		from, err := ledger.Find(ctx, tx, ledger.ByUser(in.FromUserID))
		if err != nil {
			return err
		}
		to, err := ledger.Find(ctx, tx, ledger.ByAccount(in.ToAccountID))
		if err != nil {
			return err
		}
		if from.ID == to.ID {
			return ledger.ErrInvalidTransfer
		}

		phase = PhaseLocking
		locked, err := ledger.LockInOrder(ctx, tx, from.ID, to.ID)
		if err != nil {
			return err
		}
		from, to = locked[from.ID], locked[to.ID]

		phase = PhaseValidating
		if from.UserID != in.FromUserID {
			// The account changed hands between resolve and lock.
			return ledger.ErrAccountNotFound
		}
		if from.Balance < in.Amount {
			return ledger.ErrInsufficientFunds
		}

		phase = PhaseMutating
		if source, err = ledger.ApplyDelta(ctx, tx, from, -in.Amount); err != nil {
			return err
		}
		if dest, err = ledger.ApplyDelta(ctx, tx, to, in.Amount); err != nil {
			if errors.Is(err, ledger.ErrBalanceOverflow) {
				return &ledger.Error{Code: ledger.CodeInvalidTransfer, Op: "transfer", Err: err,
					Detail: "destination balance would overflow"}
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Info("transfer aborted",
			slog.String("phase", string(PhaseAborted)),
			slog.String("failed_in", string(phase)),
			slog.Int64("from_user_id", in.FromUserID),
			slog.Int64("to_account_id", in.ToAccountID),
			slog.Int64("amount", in.Amount),
			slog.String("code", string(ledger.CodeOf(err))),
			slog.Any("error", err),
		)
		return ledger.Account{}, ledger.AsTransferFailed("transfer", err)
	}

	s.logger.Info("transfer committed",
		slog.String("phase", string(PhaseCommitted)),
		slog.Int64("from_account_id", source.ID),
		slog.Int64("to_account_id", dest.ID),
		slog.Int64("amount", in.Amount),
	)
	s.notify(ctx, source, dest, in.Amount)

	committed, err := ledger.Find(ctx, s.runner.Store(), ledger.ByAccount(source.ID))
	if err != nil {
		s.logger.Warn("transfer re-read failed, returning commit snapshot",
			slog.Int64("account_id", source.ID),
			slog.Any("error", err),
		)
		return source, nil
	}
	return committed, nil
}

func (s *Service) notify(ctx context.Context, source, dest ledger.Account, amount int64) {
	if s.notifier == nil {
		return
	}
	msgs := []notification.Message{
		{Kind: notification.KindTransferSent, UserID: source.UserID, AccountID: source.ID, Amount: amount},
		{Kind: notification.KindTransferReceived, UserID: dest.UserID, AccountID: dest.ID, Amount: amount},
	}
	for _, msg := range msgs {
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
		}
	}
}
