package ledger

import (
	"context"
	"errors"
)

// Code is the stable identifier of a ledger failure. Codes are part of the
// public API and must not change once published.
type Code string

const (
	CodeInvalidSelector   Code = "INVALID_SELECTOR"
	CodeInvalidAmount     Code = "INVALID_AMOUNT"
	CodeInvalidTransfer   Code = "INVALID_TRANSFER"
	CodeAccountNotFound   Code = "ACCOUNT_NOT_FOUND"
	CodeAlreadyExists     Code = "ALREADY_EXISTS"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeStoreUnavailable  Code = "STORE_UNAVAILABLE"
	CodeTransferFailed    Code = "TRANSFER_FAILED"
)

var messages = map[Code]string{
	CodeInvalidSelector:   "exactly one of user id or account id is required",
	CodeInvalidAmount:     "amount must be a positive integer",
	CodeInvalidTransfer:   "invalid transfer",
	CodeAccountNotFound:   "account not found",
	CodeAlreadyExists:     "account already exists for this user",
	CodeInsufficientFunds: "insufficient funds",
	CodeStoreUnavailable:  "account store unavailable",
	CodeTransferFailed:    "transfer failed, try again",
}

// Error is the typed failure returned by every ledger operation.
type Error struct {
	Code Code
	Op   string
	Err  error
	// Detail overrides the default message of Code.
	Detail string
}

func newError(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so the exported sentinels
// can be used with errors.Is regardless of Op or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Message returns the user-facing description of the failure.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if msg, ok := messages[e.Code]; ok {
		return msg
	}
	return string(e.Code)
}

var (
	ErrInvalidSelector   = &Error{Code: CodeInvalidSelector}
	ErrInvalidAmount     = &Error{Code: CodeInvalidAmount}
	ErrInvalidTransfer   = &Error{Code: CodeInvalidTransfer}
	ErrAccountNotFound   = &Error{Code: CodeAccountNotFound}
	ErrAlreadyExists     = &Error{Code: CodeAlreadyExists}
	ErrInsufficientFunds = &Error{Code: CodeInsufficientFunds}
	ErrStoreUnavailable  = &Error{Code: CodeStoreUnavailable}
	ErrTransferFailed    = &Error{Code: CodeTransferFailed}
)

var (
	// ErrConflict is returned by a store when a transaction could not complete
	// because of concurrent activity (serialization failure, deadlock victim,
	// lock wait timeout). The whole transaction may be retried.
	ErrConflict = errors.New("ledger: transaction conflict")

	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("ledger: transaction already committed or rolled back")

	// ErrNotLocked is returned when a write targets an account the
	// transaction does not hold a lock on.
	ErrNotLocked = errors.New("ledger: account not locked by transaction")

	// ErrBalanceOverflow is the cause of a credit rejected because the
	// resulting balance does not fit in an int64.
	ErrBalanceOverflow = errors.New("ledger: balance would overflow")
)

// CodeOf returns the ledger code carried by err, or "" when err is not a
// ledger error.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsBusiness reports whether err is a request or business-rule rejection
// that retrying cannot change.
func IsBusiness(err error) bool {
	switch CodeOf(err) {
	case CodeInvalidSelector, CodeInvalidAmount, CodeInvalidTransfer,
		CodeAccountNotFound, CodeAlreadyExists, CodeInsufficientFunds:
		return true
	}
	return false
}

// unavailable wraps an infrastructure error as StoreUnavailable unless it is
// already a ledger error.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if CodeOf(err) != "" {
		return err
	}
	return newError(CodeStoreUnavailable, op, err)
}

// AsTransferFailed converts infrastructure failures of a balance mutation into
// TransferFailed, leaving business rejections untouched.
func AsTransferFailed(op string, err error) error {
	if err == nil || IsBusiness(err) || CodeOf(err) == CodeTransferFailed {
		return err
	}
	return newError(CodeTransferFailed, op, err)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
