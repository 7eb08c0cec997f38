// Command devtoken mints a bearer token for a local account.
//
//	go run ./cmd/devtoken -account 6f1c...   # prints the token
//	go run ./cmd/devtoken                    # new random account id
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"idle-market/config"
	"idle-market/internal/service"

	"github.com/google/uuid"
)

func main() {
	account := flag.String("account", "", "account id (UUID); random when empty")
	configPath := flag.String("config", "", "config file path")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to jwt.expiry")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "jwt.secret is required (IDM_JWT_SECRET)")
		os.Exit(1)
	}

	id := uuid.New()
	if *account != "" {
		if id, err = uuid.Parse(*account); err != nil {
			fmt.Fprintf(os.Stderr, "invalid account id: %v\n", err)
			os.Exit(2)
		}
	}

	expiry := cfg.JWT.Expiry
	if *ttl > 0 {
		expiry = *ttl
	}

	token, expiresAt, err := service.NewJWTTokenService(cfg.JWT.Secret, expiry, cfg.JWT.Issuer).Generate(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "account %s, expires %s\n", id, expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
