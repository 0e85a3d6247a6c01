package funding

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/acctledger/internal/identity"
	"github.com/congo-pay/acctledger/internal/ledger"
)

// Handler exposes HTTP endpoints for withdrawals and deposits.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Withdraw debits the caller's account.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.handle(c, h.service.Withdraw)
}

// Deposit credits the caller's account.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.handle(c, h.service.Deposit)
}

func (h *Handler) handle(c *fiber.Ctx, op func(ctx context.Context, userID, amount int64) error) error {
	uid, ok := identity.UserID(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req AmountRequest
	if err := c.BodyParser(&req); err != nil {
		return ledger.ErrInvalidAmount
	}
	if err := op(c.UserContext(), uid, req.Amount); err != nil {
		return err
	}

	acc, err := h.service.Balance(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(BalanceResponse{AccountID: acc.ID, Balance: acc.Balance})
}
