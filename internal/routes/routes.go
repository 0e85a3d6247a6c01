package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/acctledger/internal/accounts"
	"github.com/congo-pay/acctledger/internal/config"
	"github.com/congo-pay/acctledger/internal/funding"
	"github.com/congo-pay/acctledger/internal/identity"
	"github.com/congo-pay/acctledger/internal/ledger"
	"github.com/congo-pay/acctledger/internal/middleware"
	"github.com/congo-pay/acctledger/internal/notification"
	"github.com/congo-pay/acctledger/internal/payments"
)

const devJWTSecret = "development-only-secret"

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	// Store overrides the store built from DB. Tests use it to run the
	// full HTTP stack against an in-memory store.
	Store ledger.Store
	// Resolver overrides the JWT resolver built from Cfg.JWTSecret.
	Resolver identity.Resolver
	// Notifier overrides the logging notifier.
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDevelopment() && d.Store == nil {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(d.Logger))

	store := buildStore(d)
	runner := ledger.NewRunner(store, ledger.RetryPolicy{
		MaxRetries: d.Cfg.MaxRetries,
		BaseDelay:  d.Cfg.RetryBaseDelay,
		Timeout:    d.Cfg.OperationTimeout,
	}, d.Logger)

	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}
	resolver := d.Resolver
	if resolver == nil {
		secret := d.Cfg.JWTSecret
		if secret == "" {
			d.Logger.Warn("JWT_SECRET not set, using development secret")
			secret = devJWTSecret
		}
		resolver = identity.NewTokenResolver(secret)
	}

	accountSvc := accounts.NewService(runner, accounts.Policy{InitialBalance: d.Cfg.InitialBalance}, d.Logger)
	paymentSvc := payments.NewService(runner, notifier, d.Logger)
	fundingSvc := funding.NewService(runner, d.Logger)

	RegisterHealthRoutes(app, d, store)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("",
		middleware.Authenticate(resolver),
		middleware.MutationRateLimit(d.Cache, d.Cfg.MutationRateLimit, d.Logger),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	)
	RegisterAccountRoutes(protected, accounts.NewHandler(accountSvc))
	RegisterPaymentRoutes(protected, payments.NewHandler(paymentSvc))
	RegisterFundingRoutes(protected, funding.NewHandler(fundingSvc))

	return nil
}

func buildStore(d Deps) ledger.Store {
	if d.Store != nil {
		return d.Store
	}
	if d.DB != nil {
		pg := ledger.NewPostgresStore(d.DB, d.Cfg.LockTimeout)
		return ledger.NewGuardedStore(pg, ledger.DefaultBreakerConfig(), d.Logger)
	}
	d.Logger.Warn("DATABASE_URL not set, accounts are kept in memory")
	return ledger.NewInMemory(ledger.WithLockTimeout(d.Cfg.LockTimeout))
}
