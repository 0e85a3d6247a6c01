package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/acctledger/internal/payments"
)

// RegisterPaymentRoutes wires payment endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/transfers", h.Transfer)
}
