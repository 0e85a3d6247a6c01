package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/acctledger/internal/accounts"
)

// RegisterAccountRoutes wires account lifecycle endpoints.
func RegisterAccountRoutes(r fiber.Router, h *accounts.Handler) {
	r.Post("/accounts", h.Create)
	r.Get("/accounts/me", h.Me)
	r.Get("/accounts/:accountId", h.Get)
}
