package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/acctledger/internal/identity"
)

// AccessTokenCookie is read when no Authorization header is sent.
const AccessTokenCookie = "access_token"

// Authenticate resolves the caller from a bearer token, falling back to the
// access_token cookie, and stores the user id for handlers.
func Authenticate(resolver identity.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Cookies(AccessTokenCookie)
		}
		if token == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing access token")
		}

		principal, err := resolver.Resolve(c.UserContext(), token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		identity.SetUserID(c, principal.UserID)
		return c.Next()
	}
}

func bearerToken(header string) string {
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("bearer "):])
}
