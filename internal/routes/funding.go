package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/acctledger/internal/funding"
)

// RegisterFundingRoutes wires withdrawal and deposit endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/accounts/me/withdraw", h.Withdraw)
	r.Post("/accounts/me/deposit", h.Deposit)
}
