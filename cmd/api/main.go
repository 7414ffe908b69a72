package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jonnyallum/blmotorcyclesltd/config"
	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/cache"
	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/logger"
	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/mailer"
	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/messaging"
	"github.com/jonnyallum/blmotorcyclesltd/internal/adapters/storage"
	"github.com/jonnyallum/blmotorcyclesltd/internal/api"
	"github.com/jonnyallum/blmotorcyclesltd/internal/api/handlers"
	"github.com/jonnyallum/blmotorcyclesltd/internal/dropship"
	"github.com/jonnyallum/blmotorcyclesltd/internal/feed"
	"github.com/jonnyallum/blmotorcyclesltd/internal/payments"
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

	log.Info("starting service",
		zap.String("app_name", cfg.AppName),
		zap.String("version", cfg.Version),
		zap.String("env", cfg.ENV))

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

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := store.Ping(pingCtx); err != nil {
		log.Fatal("failed to reach postgres", zap.Error(err))
	}
	log.Info("storage ready")

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("failed to initialize cache", zap.Error(err))
		}
		defer redisCache.Close()
		log.Info("cache ready")
	}

	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := messaging.NewKafkaPublisher(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Fatal("failed to initialize kafka producer", zap.Error(err))
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Info("event publisher ready")
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
	parser := feed.NewParser(rule)
	reconciler := syncsvc.NewReconciler(store, log)

	var invalidator syncsvc.CacheInvalidator
	if redisCache != nil {
		invalidator = redisCache
	}
	syncService := syncsvc.NewService(transport, parser, reconciler, invalidator, publisher, queue, log)

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

	paymentService := payments.NewService(payments.Config{
		SecretKey:      cfg.Stripe.SecretKey,
		PublishableKey: cfg.Stripe.PublishableKey,
		WebhookSecret:  cfg.Stripe.WebhookSecret,
		SuccessURL:     cfg.Stripe.SuccessURL,
		CancelURL:      cfg.Stripe.CancelURL,
	}, store, dropshipService, publisher, log)

	queue.Register(retry.OpFeedSync, syncService.RetryHandler())
	queue.Register(retry.OpDropShipNotification, dropshipService.SupplierOrderHandler())
	queue.Register(retry.OpOrderConfirmation, dropshipService.ConfirmationHandler())

	// Webhook email failures and exhausted manual syncs land in this
	// process's queue, so it needs its own drain loop.
	go queue.DrainLoop(ctx, cfg.Sync.DrainInterval)

	var handlerCache handlers.Cache
	if redisCache != nil {
		handlerCache = redisCache
	}

	router := api.SetupRouter(api.RouterDeps{
		Products:           handlers.NewProductHandler(store, handlerCache, rule, log),
		Orders:             handlers.NewOrderHandler(store, paymentService, log),
		Sync:               handlers.NewSyncHandler(syncService, queue, log),
		CORSAllowedOrigins: cfg.Security.CORSAllowOrigins,
		AdminJWTSecret:     cfg.Security.AdminJWTSecret,
		RequestTimeout:     cfg.Server.RequestTimeout,
		Logger:             log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	go func() {
		<-quit
		log.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
		}
		close(done)
	}()

	<-done
	log.Info("server stopped")
}
