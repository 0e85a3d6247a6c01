package identity

import "github.com/gofiber/fiber/v2"

const localsKey = "user_id"

// SetUserID stores the authenticated user id on the request.
func SetUserID(c *fiber.Ctx, userID int64) {
	c.Locals(localsKey, userID)
}

// UserID returns the authenticated user id stored by the auth middleware.
func UserID(c *fiber.Ctx) (int64, bool) {
	id, ok := c.Locals(localsKey).(int64)
	return id, ok && id > 0
}
