package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/congo-pay/acctledger/internal/ledger"
)

const statusOK = "ok"

// RegisterHealthRoutes adds liveness/readiness style endpoints.
func RegisterHealthRoutes(app *fiber.App, d Deps, store ledger.Store) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		dbStatus := statusOK
		redisStatus := statusOK

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		var g errgroup.Group
		if d.DB != nil {
			g.Go(func() error {
				if err := d.DB.Ping(ctx); err != nil {
					dbStatus = err.Error()
				}
				return nil
			})
		}
		if d.Cache != nil {
			g.Go(func() error {
				if err := d.Cache.Ping(ctx).Err(); err != nil {
					redisStatus = err.Error()
				}
				return nil
			})
		}
		_ = g.Wait()

		checks := fiber.Map{"postgres": dbStatus, "redis": redisStatus}
		if d.DB == nil {
			checks["postgres"] = "disabled"
		}
		if d.Cache == nil {
			checks["redis"] = "disabled"
		}
		if guarded, ok := store.(*ledger.GuardedStore); ok {
			checks["store_circuit"] = guarded.State()
		}

		status := http.StatusOK
		if dbStatus != statusOK || redisStatus != statusOK {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    checks,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
