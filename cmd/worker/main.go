// The worker runs the scheduled jobs: periodic feed synchronization
// and draining of the failed-operation queue.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jonnyallum/blmotorcyclesltd/config"
	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/cache"
	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/logger"
	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/mailer"
	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/messaging"
	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/storage"
	"github.com/jonnyallum/blmotorcyclesltd/internal/dropship"
	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
	"github.com/jonnyallum/blmotorcyclesltd/internal/feed"
	"github.com/jonnyallum/blmotorcyclesltd/internal/pricing"
	"github.com/jonnyallum/blmotorcyclesltd/internal/retry"
	syncsvc "github.com/jonnyallum/blmotorcyclesltd/internal/sync"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting worker",
		zap.String("app_name", cfg.AppName),
		zap.String("version", cfg.Version),
		zap.Duration("sync_interval", cfg.Sync.Interval),
		zap.Duration("drain_interval", cfg.Sync.DrainInterval))

	connString, err := storage.ConnectionString(
		cfg.Postgres.Host, cfg.Postgres.User, cfg.Postgres.Password,
		cfg.Postgres.DBName, cfg.Postgres.SSLMode,
		cfg.Postgres.Port, cfg.Postgres.PoolSize, cfg.Postgres.Timeout)
	if err != nil {
		log.Fatal("invalid postgres configuration", zap.Error(err))
	}

	store, err := storage.New(ctx, connString)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("failed to initialize cache", zap.Error(err))
		}
		defer redisCache.Close()
	}

	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := messaging.NewKafkaPublisher(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Fatal("failed to initialize kafka producer", zap.Error(err))
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	queue := retry.NewQueue(log)
	rule := pricing.NewRule(cfg.Pricing.Markup, cfg.Pricing.DeliveryCost)

	transport := feed.NewSFTPTransport(feed.TransportConfig{
		Host:      cfg.Feed.Host,
		Port:      cfg.Feed.Port,
		Username:  cfg.Feed.Username,
		Password:  cfg.Feed.Password,
		Timeout:   cfg.Feed.Timeout,
		Dir:       cfg.Feed.Dir,
		Extension: cfg.Feed.Extension,
	}, log)

	var invalidator syncsvc.CacheInvalidator
	if redisCache != nil {
		invalidator = redisCache
	}
	syncService := syncsvc.NewService(transport, feed.NewParser(rule),
		syncsvc.NewReconciler(store, log), invalidator, publisher, queue, log)

	sender := mailer.NewSMTPSender(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		From:     cfg.SMTP.From,
		Password: cfg.SMTP.Password,
	}, log)
	dropshipService := dropship.NewService(dropship.Config{
		SupplierEmail: cfg.Shop.SupplierEmail,
		FromEmail:     cfg.SMTP.From,
		Phone:         cfg.Shop.Phone,
		CompanyNo:     cfg.Shop.CompanyNo,
		WebsiteURL:    cfg.Shop.WebsiteURL,
	}, sender, queue, log)

	queue.Register(retry.OpFeedSync, syncService.RetryHandler())
	queue.Register(retry.OpDropShipNotification, dropshipService.SupplierOrderHandler())
	queue.Register(retry.OpOrderConfirmation, dropshipService.ConfirmationHandler())

	// Worker metrics live on their own port so the API's /metrics
	// stays separate.
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port+1),
		Handler: promhttp.Handler(),
	}
	go func() {
		log.Info("metrics listening", zap.String("address", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	runSync := func() {
		result, err := syncService.Run(ctx)
		switch {
		case errors.Is(err, errs.ErrSyncInProgress):
			log.Warn("skipping scheduled sync, previous run still active")
		case err != nil:
			log.Error("scheduled sync failed", zap.Error(err))
		default:
			log.Info("scheduled sync finished",
				zap.Int("created", result.Created),
				zap.Int("updated", result.Updated),
				zap.Int("total", result.Total))
		}
	}

	syncTicker := time.NewTicker(cfg.Sync.Interval)
	drainTicker := time.NewTicker(cfg.Sync.DrainInterval)
	defer syncTicker.Stop()
	defer drainTicker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// One run at startup so a fresh deployment has a catalog before
	// the first tick.
	runSync()

	for {
		select {
		case <-syncTicker.C:
			runSync()
		case <-drainTicker.C:
			queue.Drain(ctx)
		case <-quit:
			log.Info("shutdown signal received")
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Error("metrics shutdown failed", zap.Error(err))
			}
			shutdownCancel()

			log.Info("worker stopped")
			return
		}
	}
}
