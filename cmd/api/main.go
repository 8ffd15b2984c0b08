package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/cargolink/escrow-api/internal/config"
	"github.com/cargolink/escrow-api/internal/domain/banktx"
	"github.com/cargolink/escrow-api/internal/domain/claim"
	"github.com/cargolink/escrow-api/internal/domain/hold"
	"github.com/cargolink/escrow-api/internal/domain/notification"
	"github.com/cargolink/escrow-api/internal/domain/wallet"
	"github.com/cargolink/escrow-api/internal/middleware"
	"github.com/cargolink/escrow-api/internal/pkg/database"
	"github.com/cargolink/escrow-api/internal/pkg/gateway"
	"github.com/cargolink/escrow-api/internal/pkg/jwt"
	"github.com/cargolink/escrow-api/internal/pkg/logger"
	"github.com/cargolink/escrow-api/internal/pkg/password"
	pkgresponse "github.com/cargolink/escrow-api/internal/pkg/response"
	"github.com/cargolink/escrow-api/internal/pkg/retry"
	"github.com/cargolink/escrow-api/migrations"
)

const notifyTimeout = 5 * time.Second

// handlers groups everything the router mounts.
type handlers struct {
	wallets  *wallet.Handler
	holds    *hold.Handler
	claims   *claim.Handler
	bank     *banktx.Handler
	webhooks *banktx.WebhookHandler
}

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     "escrow-api",
	})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting escrow API")

	db, err := database.NewPostgres(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if cfg.MigrateOnStart {
		if err := migrations.Apply(context.Background(), db); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	notifier := notification.NewAsync(notification.NewRedisPublisher(redis), notifyTimeout)

	// ---------- Services ----------
	walletService := wallet.NewService(db, wallet.NewRepository(), cfg.DefaultCurrency)
	holdService := hold.NewService(db, hold.NewRepository(), walletService)
	claimService := claim.NewService(
		db,
		claim.NewRepository(),
		claim.NewProjectRepository(db),
		holdService,
		walletService,
		password.NewHasher(cfg.CodeBcryptCost),
		claim.NewAttemptLimiter(redis, cfg.CodeMaxAttempts, cfg.CodeAttemptsTTL),
		notifier,
		cfg.DefaultCurrency,
	)

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.GatewayBaseURL,
		MerchantID: cfg.GatewayMerchantID,
		SecretKey:  cfg.GatewaySecretKey,
		Timeout:    cfg.GatewayTimeout,
	})
	bankService := banktx.NewService(db, banktx.NewRepository(), walletService, gatewayClient, newGatewayRetrier(cfg), notifier)

	if cfg.GatewayWebhookSecret == "" {
		log.Warn().Msg("GATEWAY_WEBHOOK_SECRET is empty, bank webhooks will be rejected")
	}

	// ---------- Router ----------
	r := newRouter(cfg, middleware.Auth(jwtService), handlers{
		wallets:  wallet.NewHandler(walletService),
		holds:    hold.NewHandler(holdService),
		claims:   claim.NewHandler(claimService),
		bank:     banktx.NewHandler(bankService),
		webhooks: banktx.NewWebhookHandler(bankService, cfg.GatewayWebhookSecret),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	notifier.Wait()

	log.Info().Msg("Server exited properly")
}

func newGatewayRetrier(cfg *config.Config) *retry.Retrier {
	return retry.New("gateway.payout", retry.Config{
		MaxRetries: cfg.RetryMaxAttempts,
		BaseDelay:  cfg.RetryBaseDelay,
		MaxDelay:   cfg.RetryMaxDelay,
		Multiplier: 2.0,
		Jitter:     true,
		Retryable:  gateway.IsRetryable,
	})
}

func newRouter(cfg *config.Config, authMiddleware func(http.Handler) http.Handler, h handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		r.Mount("/wallets", h.wallets.Routes(authMiddleware))
		r.With(authMiddleware, middleware.RequireAdmin()).Post("/transactions/{id}/reverse", h.wallets.Reverse)
		r.Mount("/holds", h.holds.Routes(authMiddleware))
		r.Mount("/claims", h.claims.Routes(authMiddleware))
		r.Mount("/bank", h.bank.Routes(authMiddleware))
	})

	// Gateway callbacks authenticate by body signature, not JWT.
	r.Mount("/webhooks/bank", h.webhooks.Routes())

	return r
}
