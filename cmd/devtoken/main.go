// Command devtoken mints a bearer token for a member ID using the server's
// configured JWT secret. It stands in for the identity provider during
// local development.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/mmynk/tripledger/internal/auth"
	"github.com/mmynk/tripledger/internal/config"
	"github.com/mmynk/tripledger/pkg/logging"
)

func main() {
	memberID := flag.StringP("member", "m", "", "member ID to issue the token for")
	name := flag.StringP("name", "n", "", "display name carried in the token")
	ttl := flag.Duration("ttl", 0, "token lifetime (default: auth.token_ttl from config)")
	flag.Parse()

	logging.Setup("")

	if *memberID == "" {
		fmt.Fprintln(os.Stderr, "usage: devtoken --member <id> [--name <display name>] [--ttl 24h]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}
	if *name == "" {
		*name = *memberID
	}

	token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, lifetime).Generate(*memberID, *name)
	if err != nil {
		slog.Error("Failed to generate token", "error", err)
		os.Exit(1)
	}

	slog.Debug("Token issued", "member_id", *memberID, "expires_at", time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
}
