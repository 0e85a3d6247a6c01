package server

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/acctledger/internal/config"
	"github.com/congo-pay/acctledger/internal/logging"
)

func TestNewDevelopmentServer(t *testing.T) {
	cfg := config.Config{AppName: "test", AppEnv: config.EnvDevelopment, Port: "0", MaxRetries: 1}
	srv, err := New(cfg, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	resp, err := srv.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/accounts/me", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestNewRequiresBackendsOutsideDevelopment(t *testing.T) {
	cfg := config.Config{AppName: "test", AppEnv: "staging"}
	if _, err := New(cfg, nil, nil, logging.Discard()); err == nil {
		t.Fatalf("expected error without database")
	}
}
