package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
	"storefront/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting storefront API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize repositories
	var productRepo repository.ProductRepository = repository.NewProductRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	userRepo := repository.NewUserRepository(pool, logger)
	outboxRepo := repository.NewOutboxRepository(pool, logger)
	ledger := repository.NewStockLedger(m, logger)

	// Product cache is optional; without Redis every read goes to PostgreSQL.
	var invalidator service.ProductInvalidator
	if cfg.Cache.Enabled() {
		rdb, err := cache.NewClient(ctx, cfg.Cache, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to connect to redis, continuing without product cache")
		} else {
			defer rdb.Close()
			cached := cache.NewProductRepository(productRepo, rdb, cfg.Cache.TTL, logger)
			productRepo = cached
			invalidator = cached
		}
	} else {
		logger.Info().Msg("product cache disabled")
	}

	// Initialize services
	productService := service.NewProductService(productRepo, ledger, invalidator, logger)
	cartService := service.NewCartService(cartRepo, productRepo, logger)
	orderService := service.NewOrderService(orderRepo, cartRepo, ledger, outboxRepo, cfg.Checkout, m, invalidator, logger)
	authService := service.NewAuthService(userRepo, logger)

	sessions := session.NewManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)

	// Outbox relay runs only when brokers are configured; events stay in the
	// outbox table otherwise.
	var workers sync.WaitGroup
	if cfg.Events.Enabled() {
		publisher := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close kafka publisher")
			}
		}()

		relay := events.NewRelay(outboxRepo, publisher, m, cfg.Events.RelayInterval, cfg.Events.BatchSize, logger)
		workers.Add(1)
		go func() {
			defer workers.Done()
			relay.Run(ctx)
		}()
	} else {
		logger.Info().Msg("kafka brokers not configured, outbox relay disabled")
	}

	// Initialize HTTP handlers and router
	mux := router.New(router.Handlers{
		Product: handler.NewProductHandler(productService, logger),
		Cart:    handler.NewCartHandler(cartService, logger),
		Order:   handler.NewOrderHandler(orderService, logger),
		Payment: handler.NewPaymentHandler(orderService, logger),
		Auth:    handler.NewAuthHandler(authService, cartService, sessions, cfg.Auth.SecureCookie, logger),
		Admin:   handler.NewAdminHandler(productService, orderService, logger),
		Metrics: m.Handler(),
	}, router.Options{
		AdminAPIKey:   cfg.Auth.AdminAPIKey,
		PaymentSecret: cfg.Auth.PaymentCallbackSecret,
		Sessions:      sessions,
		SecureCookie:  cfg.Auth.SecureCookie,
		Observer:      m,
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		cancel()
		workers.Wait()
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		err := server.Shutdown(shutdownCtx)

		// Stop background workers once no request can enqueue more work.
		cancel()
		workers.Wait()

		if err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
