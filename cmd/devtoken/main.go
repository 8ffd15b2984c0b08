// Command devtoken prints an access token for local testing of the API.
//
//	go run ./cmd/devtoken -role carrier
//	go run ./cmd/devtoken -user 6f1c... -role admin -ttl 24h -wallet
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/cargolink/escrow-api/internal/config"
	"github.com/cargolink/escrow-api/internal/domain/wallet"
	"github.com/cargolink/escrow-api/internal/pkg/database"
	"github.com/cargolink/escrow-api/internal/pkg/identity"
	"github.com/cargolink/escrow-api/internal/pkg/jwt"
)

type options struct {
	userID     uuid.UUID
	role       identity.Role
	ttl        time.Duration
	withWallet bool
}

func main() {
	cfg := config.Load()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("devtoken: %v", err)
	}
	if !cfg.IsDevelopment() {
		log.Fatalf("devtoken: refusing to mint tokens with ENV=%s", cfg.Env)
	}

	token, err := issue(cfg.JWTSecret, opts)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Printf("user_id: %s\nrole:    %s\n", opts.userID, opts.role)

	if opts.withWallet {
		db, err := database.NewPostgres(cfg.DatabaseURL, database.DefaultPoolConfig())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.ClosePostgres(db)

		wallets := wallet.NewService(db, wallet.NewRepository(), cfg.DefaultCurrency)
		w, err := wallets.EnsureWallet(context.Background(), opts.userID, "")
		if err != nil {
			log.Fatalf("Failed to ensure wallet: %v", err)
		}
		fmt.Printf("wallet:  %s (%s)\n", w.ID, w.Currency)
	}

	fmt.Printf("\nAuthorization: Bearer %s\n", token)
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	user := fs.String("user", "", "user id (random when empty)")
	role := fs.String("role", string(identity.RoleShipper), "shipper, carrier or admin")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	withWallet := fs.Bool("wallet", false, "create the user's wallet if missing")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{ttl: *ttl, withWallet: *withWallet}

	r, err := identity.ParseRole(*role)
	if err != nil {
		return options{}, fmt.Errorf("role %q: %w", *role, err)
	}
	opts.role = r

	if *user == "" {
		opts.userID = uuid.New()
	} else if opts.userID, err = uuid.Parse(*user); err != nil {
		return options{}, fmt.Errorf("user %q: %w", *user, err)
	}
	if opts.ttl <= 0 {
		return options{}, fmt.Errorf("ttl must be positive")
	}
	return opts, nil
}

func issue(secret string, opts options) (string, error) {
	return jwt.NewService(secret, opts.ttl).GenerateAccessToken(opts.userID, opts.role)
}
