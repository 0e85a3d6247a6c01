package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "JWT_SECRET", "ACCOUNT_INITIAL_BALANCE",
		"TRANSFER_MAX_RETRIES", "RETRY_BASE_DELAY", "OPERATION_TIMEOUT", "LOCK_TIMEOUT",
		"SHUTDOWN_TIMEOUT_SECONDS", "SHUTDOWN_TIMEOUT", "IDEMPOTENCY_TTL_SECONDS",
		"IDEMPOTENCY_TTL", "DB_MAX_CONNS", "RUN_MIGRATIONS", "MUTATION_RATE_LIMIT",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_DevelopmentDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "development")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, int64(0), cfg.InitialBalance)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 25*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.False(t, cfg.RunMigrations)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", ":9000")
	t.Setenv("ACCOUNT_INITIAL_BALANCE", "500")
	t.Setenv("TRANSFER_MAX_RETRIES", "5")
	t.Setenv("LOCK_TIMEOUT", "750ms")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("DB_MAX_CONNS", "20")
	t.Setenv("RUN_MIGRATIONS", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Address())
	assert.Equal(t, int64(500), cfg.InitialBalance)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 750*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, int32(20), cfg.DBMaxConns)
	assert.True(t, cfg.RunMigrations)
}

func TestFromEnv_ProductionRejectsSeedBalance(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ACCOUNT_INITIAL_BALANCE", "100")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "ACCOUNT_INITIAL_BALANCE")
}

func TestFromEnv_RequiresBackendsOutsideDevelopment(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestFromEnv_InvalidValues(t *testing.T) {
	for key, value := range map[string]string{
		"ACCOUNT_INITIAL_BALANCE": "-1",
		"TRANSFER_MAX_RETRIES":    "many",
		"RETRY_BASE_DELAY":        "soon",
		"IDEMPOTENCY_TTL_SECONDS": "x",
		"RUN_MIGRATIONS":          "perhaps",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("APP_ENV", "development")
			t.Setenv(key, value)
			_, err := FromEnv()
			assert.ErrorContains(t, err, key)
		})
	}
}
