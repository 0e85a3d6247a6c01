package payments

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/acctledger/internal/accounts"
	"github.com/congo-pay/acctledger/internal/identity"
	"github.com/congo-pay/acctledger/internal/ledger"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// TransferRequest is the body of a transfer call. The source account is
// always the caller's own.
type TransferRequest struct {
	ToAccountID int64 `json:"to_account_id"`
	Amount      int64 `json:"amount"`
}

// Transfer moves funds from the caller's account to another account.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	uid, ok := identity.UserID(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return ledger.ErrInvalidTransfer
	}

	acc, err := h.service.Transfer(c.UserContext(), TransferIntent{
		FromUserID:  uid,
		ToAccountID: req.ToAccountID,
		Amount:      req.Amount,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(accounts.ToResponse(acc))
}
