package accounts

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/acctledger/internal/identity"
	"github.com/congo-pay/acctledger/internal/ledger"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Response is the JSON representation of an account.
type Response struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToResponse renders acc for clients.
func ToResponse(acc ledger.Account) Response {
	return Response{
		ID:        acc.ID,
		UserID:    acc.UserID,
		Balance:   acc.Balance,
		CreatedAt: acc.CreatedAt,
		UpdatedAt: acc.UpdatedAt,
	}
}

// Create opens the authenticated user's account.
func (h *Handler) Create(c *fiber.Ctx) error {
	uid, ok := identity.UserID(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	acc, err := h.service.Create(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(ToResponse(acc))
}

// Me returns the authenticated user's account.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, ok := identity.UserID(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	acc, err := h.service.Get(c.UserContext(), ledger.ByUser(uid))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(ToResponse(acc))
}

// Get returns an account by id. Only its owner may read it.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, ok := identity.UserID(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := strconv.ParseInt(c.Params("accountId"), 10, 64)
	if err != nil || id <= 0 {
		return ledger.ErrInvalidSelector
	}
	acc, err := h.service.Get(c.UserContext(), ledger.ByAccount(id))
	if err != nil {
		return err
	}
	if acc.UserID != uid {
		// Indistinguishable from a missing account.
		return ledger.ErrAccountNotFound
	}
	return c.Status(http.StatusOK).JSON(ToResponse(acc))
}
