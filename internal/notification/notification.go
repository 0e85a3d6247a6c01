package notification

import (
	"context"
	"log/slog"
)

const (
	// KindTransferReceived is sent to the owner of a credited account.
	KindTransferReceived = "transfer_received"
	// KindTransferSent is sent to the owner of a debited account.
	KindTransferSent = "transfer_sent"
)

// Message describes a notification payload.
type Message struct {
	Kind      string
	UserID    int64
	AccountID int64
	Amount    int64
}

// Notifier delivers notifications to downstream systems. Delivery happens
// after the ledger has committed; a failed send never undoes a transfer.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.Int64("user_id", message.UserID),
		slog.Int64("account_id", message.AccountID),
		slog.Int64("amount", message.Amount),
	)
	return nil
}
