package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vietpay-gateway/internal/balance"
	"github.com/vietpay-gateway/internal/config"
	"github.com/vietpay-gateway/internal/data/failover"
	"github.com/vietpay-gateway/internal/data/mongo"
	"github.com/vietpay-gateway/internal/data/postgres"
	"github.com/vietpay-gateway/internal/expiry"
	"github.com/vietpay-gateway/internal/gateway"
	"github.com/vietpay-gateway/internal/gateway/service"
	"github.com/vietpay-gateway/internal/logger"
	"github.com/vietpay-gateway/internal/merchantcache"
	"github.com/vietpay-gateway/internal/notifier"
	"github.com/vietpay-gateway/internal/orders"
	"github.com/vietpay-gateway/internal/platform/messaging/producers"
	"github.com/vietpay-gateway/internal/platform/persistence"
	"github.com/vietpay-gateway/internal/platform/storage"
	"github.com/vietpay-gateway/internal/ratelimit"
	"github.com/vietpay-gateway/internal/reconciler"
	"github.com/vietpay-gateway/internal/reconciler/portal"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Payment Gateway",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize stores with app context
	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Initialize the storage resolver and start health probing
	resolver := storage.NewResolver(log, mongoDB, postgresDB, cfg.Storage.ProbeInterval, cfg.Storage.ProbeTimeout)
	resolver.Start(appCtx)

	// Initialize repositories: per-store implementations behind the failover layer
	orderRepo := failover.NewOrderRepository(log, resolver,
		mongo.NewOrderRepository(log, mongoDB.Database()),
		postgres.NewOrderRepository(log, postgresDB))
	entryRepo := failover.NewBankTxRepository(log, resolver,
		mongo.NewBankTxRepository(log, mongoDB.Database()),
		postgres.NewBankTxRepository(log, postgresDB))
	merchantRepo := failover.NewMerchantRepository(log, resolver,
		mongo.NewMerchantRepository(log, mongoDB.Database()),
		postgres.NewMerchantRepository(log, postgresDB))

	// Initialize the merchant resolution cache
	staticDir, err := merchantcache.LoadStaticDirectory(cfg.Merchant.StaticConfigPath)
	if err != nil {
		log.Error("Failed to load static merchant directory", "error", err)
		os.Exit(1)
	}
	merchants := merchantcache.NewResolver(log, merchantRepo, redisClient, staticDir, merchantcache.Options{
		LocalCapacity: cfg.Merchant.LocalCacheSize,
		LocalTTL:      cfg.Merchant.LocalCacheTTL,
		RedisTTL:      cfg.Merchant.RedisCacheTTL,
		KeyPrefix:     cfg.Merchant.RedisKeyPrefix,
	})

	// Initialize the balance ledger
	ledger := balance.NewLedger(log, merchantRepo)

	// Initialize the merchant callback retry queue
	sender := notifier.NewHTTPSender(log, cfg.Notifier.Timeout)
	queue, err := notifier.NewQueue(log, sender, notifier.Options{
		Capacity:   cfg.Notifier.Capacity,
		BaseDelay:  cfg.Notifier.BaseDelay,
		MaxRetries: cfg.Notifier.MaxRetries,
		PoolSize:   cfg.Notifier.PoolSize,
		Timeout:    cfg.Notifier.Timeout,
	}, func(orderID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := orderRepo.MarkNotified(ctx, orderID); err != nil {
			log.Error("Failed to mark order as notified", "order_id", orderID, "error", err)
		}
	})
	if err != nil {
		log.Error("Failed to initialize notification queue", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producers for the settlement event stream
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	settlementProducer, err := producers.NewSettlementEventProducer(appCtx, log, &cfg.Kafka, dlqProducer)
	if err != nil {
		log.Error("Failed to initialize settlement Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize the external validation channels
	registry := portal.NewRegistry(
		portal.NewSepayClient(log, cfg.Portal.Sepay.BaseURL, cfg.Portal.Sepay.APIKey, cfg.Portal.HTTPTimeout),
		portal.NewCassoClient(log, cfg.Portal.Casso.BaseURL, cfg.Portal.Casso.APIKey, cfg.Portal.HTTPTimeout),
	)

	// Initialize core services
	paymentWindow := time.Duration(cfg.Payment.WindowSeconds) * time.Second
	orderService := orders.NewService(log, orderRepo, entryRepo, ledger, queue, merchants, paymentWindow)
	matcher := reconciler.NewMatcher(log, entryRepo, orderRepo, ledger, registry, queue, merchants, settlementProducer)
	limiter := ratelimit.NewBulkLimiter(cfg.RateLimit.BulkPerWindow, cfg.RateLimit.Window)

	// Start the deposit expiry scanner
	scanner := expiry.NewScanner(log, orderRepo, entryRepo, queue, redisClient,
		cfg.Payment.ExpiryScanInterval, cfg.Payment.ExpiryScanBatch)
	scanner.Start(appCtx)

	// Initialize REST server
	router := gateway.NewRouter(gateway.RouterDeps{
		Logger:     log,
		Orders:     service.NewOrderService(log, merchants, orderService, limiter),
		Validation: service.NewValidationService(log, matcher),
		Webhooks:   service.NewWebhookService(log, matcher, orderService),
		Resolver:   resolver,
		Notifier:   queue,
	})
	server := gateway.NewServer(log, cfg, router)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first so no new work arrives
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	scanner.Stop()
	resolver.Stop()
	queue.Close()

	if err = settlementProducer.Close(); err != nil {
		log.Error("Error closing settlement Kafka producer", "error", err)
	}
	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	postgresDB.Close()

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
