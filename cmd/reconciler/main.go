package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/cargolink/escrow-api/internal/config"
	"github.com/cargolink/escrow-api/internal/domain/banktx"
	"github.com/cargolink/escrow-api/internal/domain/notification"
	"github.com/cargolink/escrow-api/internal/domain/wallet"
	"github.com/cargolink/escrow-api/internal/pkg/database"
	"github.com/cargolink/escrow-api/internal/pkg/gateway"
	"github.com/cargolink/escrow-api/internal/pkg/logger"
	"github.com/cargolink/escrow-api/internal/pkg/retry"
	"github.com/cargolink/escrow-api/internal/pkg/storage"
)

// wakeChannel lets operators trigger a run without waiting for the ticker.
const wakeChannel = "bank:reconcile"

type reconciler interface {
	Reconcile(ctx context.Context, olderThan time.Duration, limit int) (*banktx.Report, error)
}

type runner struct {
	svc       reconciler
	store     storage.ReportStore
	olderThan time.Duration
	batch     int
}

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     "reconciler",
	})

	log.Info().
		Dur("interval", cfg.ReconcileInterval).
		Dur("older_than", cfg.ReconcileOlderThan).
		Msg("Starting reconciler")

	pool := database.DefaultPoolConfig()
	pool.MaxOpenConns, pool.MaxIdleConns = 5, 2
	db, err := database.NewPostgres(cfg.DatabaseURL, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newReportStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create report storage")
	}

	notifier := notification.NewAsync(notification.NewRedisPublisher(rdb), 5*time.Second)
	defer notifier.Wait()

	wallets := wallet.NewService(db, wallet.NewRepository(), cfg.DefaultCurrency)
	client := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.GatewayBaseURL,
		MerchantID: cfg.GatewayMerchantID,
		SecretKey:  cfg.GatewaySecretKey,
		Timeout:    cfg.GatewayTimeout,
	})
	retrier := retry.New("gateway.reconcile", retry.Config{
		MaxRetries: cfg.RetryMaxAttempts,
		BaseDelay:  cfg.RetryBaseDelay,
		MaxDelay:   cfg.RetryMaxDelay,
		Multiplier: 2.0,
		Jitter:     true,
		Retryable:  gateway.IsRetryable,
	})

	run := &runner{
		svc:       banktx.NewService(db, banktx.NewRepository(), wallets, client, retrier, notifier),
		store:     store,
		olderThan: cfg.ReconcileOlderThan,
		batch:     cfg.ReconcileBatchSize,
	}

	wake := make(chan struct{}, 1)
	if rdb != nil {
		go subscribeWakeups(ctx, rdb, wake)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		if _, err := run.once(ctx); err != nil {
			log.Error().Err(err).Msg("Reconciliation run failed")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("reconciler stopped")
			return
		case <-wake:
		case <-ticker.C:
		}
	}
}

// once runs one reconciliation pass and stores its report. It returns the
// key the report was written under; runs that checked nothing are not stored.
func (r *runner) once(ctx context.Context) (string, error) {
	report, err := r.svc.Reconcile(ctx, r.olderThan, r.batch)
	if err != nil {
		return "", err
	}
	if report.Checked == 0 {
		return "", nil
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	key := reportKey(report.StartedAt)
	if err := r.store.Put(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}

	log.Info().Str("key", key).Int("checked", report.Checked).Msg("Reconciliation report stored")
	return key, nil
}

func reportKey(at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("reconciliation/%s/%s.json", at.Format("2006/01/02"), at.Format("150405.000000000"))
}

func newReportStore(ctx context.Context, cfg *config.Config) (storage.ReportStore, error) {
	if cfg.ReportsEnabled() {
		return storage.NewS3Storage(ctx, storage.Config{
			Region:    cfg.ReportsS3Region,
			Bucket:    cfg.ReportsS3Bucket,
			Endpoint:  cfg.ReportsS3Endpoint,
			AccessKey: cfg.ReportsS3AccessKey,
			SecretKey: cfg.ReportsS3SecretKey,
		})
	}
	log.Info().Str("dir", cfg.ReportsLocalDir).Msg("No report bucket configured, writing reports locally")
	return storage.NewLocalStorage(cfg.ReportsLocalDir)
}

func subscribeWakeups(ctx context.Context, rdb *redis.Client, wake chan<- struct{}) {
	sub := rdb.Subscribe(ctx, wakeChannel)
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Channel():
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}
