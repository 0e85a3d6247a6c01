package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/acctledger/internal/ledger"
)

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable code and a human readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByCode = map[ledger.Code]int{
	ledger.CodeInvalidSelector:   fiber.StatusBadRequest,
	ledger.CodeInvalidAmount:     fiber.StatusBadRequest,
	ledger.CodeInvalidTransfer:   fiber.StatusBadRequest,
	ledger.CodeAccountNotFound:   fiber.StatusNotFound,
	ledger.CodeAlreadyExists:     fiber.StatusConflict,
	ledger.CodeInsufficientFunds: fiber.StatusBadRequest,
	ledger.CodeStoreUnavailable:  fiber.StatusServiceUnavailable,
	ledger.CodeTransferFailed:    fiber.StatusServiceUnavailable,
}

// StatusFor maps err onto the HTTP status it is rendered with.
func StatusFor(err error) int {
	if status, ok := statusByCode[ledger.CodeOf(err)]; ok {
		return status
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler renders ledger errors with their code and fiber errors with
// their status. Anything else is a 500 whose cause is logged, not returned.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := StatusFor(err)
		detail := ErrorDetail{Code: "INTERNAL", Message: "internal server error"}

		var le *ledger.Error
		var fe *fiber.Error
		switch {
		case errors.As(err, &le):
			detail = ErrorDetail{Code: string(le.Code), Message: le.Message()}
		case errors.As(err, &fe):
			detail = ErrorDetail{Code: codeForStatus(fe.Code), Message: fe.Message}
		default:
			logger.Error("unhandled error",
				slog.String("request_id", RequestIDFrom(c)),
				slog.Any("error", err),
			)
		}
		return c.Status(status).JSON(ErrorBody{Error: detail})
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	case fiber.StatusServiceUnavailable:
		return "UNAVAILABLE"
	}
	return "INTERNAL"
}
