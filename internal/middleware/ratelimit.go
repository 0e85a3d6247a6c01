package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/acctledger/internal/identity"
)

const rateLimitPrefix = "rl:mutation:"

// MutationRateLimit caps balance-changing requests per user per minute using
// Redis counters. It fails open when Redis is absent or erroring, and is a
// no-op when maxPerMin is zero.
func MutationRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || maxPerMin <= 0 {
			return c.Next()
		}
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := rateLimitPrefix + c.IP()
		if uid, ok := identity.UserID(c); ok {
			key = rateLimitPrefix + strconv.FormatInt(uid, 10)
		}

		// The window is (re)armed on every hit so a counter can never be left
		// without a TTL.
		var incr *redis.IntCmd
		_, err := cache.TxPipelined(c.UserContext(), func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(c.UserContext(), key)
			pipe.ExpireNX(c.UserContext(), key, time.Minute)
			return nil
		})
		if err != nil {
			logger.Warn("rate limit counter failed", slog.String("key", key), slog.Any("error", err))
			return c.Next()
		}
		cnt := incr.Val()
		if cnt > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, "60")
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}
