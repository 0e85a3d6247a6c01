// Command devtoken prints an access token for a user id, signed with
// JWT_SECRET, for exercising the API locally.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/congo-pay/acctledger/internal/config"
	"github.com/congo-pay/acctledger/internal/identity"
)

func main() {
	userID := flag.Int64("user", 0, "user id to issue the token for")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		fmt.Fprintln(os.Stderr, "devtoken refuses to run with APP_ENV=production")
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET must be set")
		os.Exit(1)
	}
	if *userID <= 0 {
		fmt.Fprintln(os.Stderr, "-user must be a positive id")
		os.Exit(2)
	}

	token, err := identity.NewTokenResolver(cfg.JWTSecret).Issue(*userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
