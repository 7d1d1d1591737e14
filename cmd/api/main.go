package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hotelhub/loyalty-engine/internal/config"
	"github.com/hotelhub/loyalty-engine/internal/handler"
	"github.com/hotelhub/loyalty-engine/internal/repository"
	"github.com/hotelhub/loyalty-engine/internal/service"
	"github.com/hotelhub/loyalty-engine/internal/validator"
	"github.com/hotelhub/loyalty-engine/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry, then apply schema
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply database schema")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Hotel Loyalty Engine",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator
	validate := validator.New()

	// Repositories
	accountRepo := repository.NewAccountRepository(pool)
	ledgerRepo := repository.NewLedgerRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	redemptionRepo := repository.NewRedemptionRepository(pool)

	// Services (layered architecture: the ledger is the only balance writer)
	tierTable := cfg.Loyalty.TierTable()
	ledgerSvc := service.NewLedgerService(pool, accountRepo, ledgerRepo, service.LedgerOptions{
		TierTable:     tierTable,
		EarnRate:      decimal.NewFromFloat(cfg.Loyalty.EarnRate),
		PointValidity: cfg.Loyalty.PointValidity(),
		LockRetries:   cfg.Loyalty.LockRetries,
		LockBackoff:   cfg.Loyalty.LockBackoff(),
		LockTimeout:   cfg.Loyalty.LockTimeout(),
	})
	redemptionSvc := service.NewRedemptionService(pool, accountRepo, catalogRepo, redemptionRepo, ledgerSvc, service.RedemptionOptions{
		CouponConfirmWindow: cfg.Loyalty.CouponConfirmWindow(),
		LockRetries:         cfg.Loyalty.LockRetries,
		LockBackoff:         cfg.Loyalty.LockBackoff(),
		LockTimeout:         cfg.Loyalty.LockTimeout(),
	})
	catalogSvc := service.NewCatalogService(catalogRepo)

	// Point expiry sweep runs until shutdown
	expiryCtx, expiryCancel := context.WithCancel(ctx)
	defer expiryCancel()
	expiry := service.NewExpiryProcessor(pool, accountRepo, ledgerRepo, service.ExpiryOptions{
		Interval:    cfg.Expiry.Interval(),
		BatchSize:   cfg.Expiry.BatchSize,
		LockRetries: cfg.Loyalty.LockRetries,
		LockBackoff: cfg.Loyalty.LockBackoff(),
		LockTimeout: cfg.Loyalty.LockTimeout(),
	})
	go expiry.Start(expiryCtx)

	// Handlers
	customerHandler := handler.NewCustomerHandler(ledgerSvc, redemptionSvc, validate, tierTable)
	redemptionHandler := handler.NewRedemptionHandler(redemptionSvc, validate)
	catalogHandler := handler.NewCatalogHandler(catalogSvc, validate)
	healthHandler := handler.NewHealthHandler(pool)

	app.Get("/health", healthHandler.Check)

	// Customer routes
	app.Post("/api/customers", customerHandler.Register)
	app.Get("/api/customers/:id/dashboard", customerHandler.Dashboard)
	app.Get("/api/customers/:id/history", customerHandler.History)
	app.Post("/api/customers/:id/stays", customerHandler.StayCompleted)

	// Redemption routes
	app.Post("/api/redemptions/rewards", redemptionHandler.RedeemReward)
	app.Post("/api/redemptions/coupons", redemptionHandler.RedeemCoupon)
	app.Post("/api/redemptions/:code/confirm", redemptionHandler.ConfirmCoupon)
	app.Post("/api/redemptions/:id/reverse", redemptionHandler.Reverse)
	app.Get("/api/redemptions/:id", redemptionHandler.GetRedemption)

	// Catalog administration
	app.Post("/api/catalog", catalogHandler.CreateItem)
	app.Get("/api/catalog/:code", catalogHandler.GetItem)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Stop the expiry sweep before draining requests
	expiryCancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
