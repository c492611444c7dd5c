package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	httpAdapter "github.com/vblaha/saldo/internal/adapter/http"
	"github.com/vblaha/saldo/internal/adapter/http/handler"
	"github.com/vblaha/saldo/internal/adapter/http/middleware"
	postgresRepo "github.com/vblaha/saldo/internal/adapter/repository/postgres"
	redisRepo "github.com/vblaha/saldo/internal/adapter/repository/redis"
	"github.com/vblaha/saldo/internal/anomaly"
	"github.com/vblaha/saldo/internal/infrastructure/config"
	"github.com/vblaha/saldo/internal/infrastructure/logger"
	"github.com/vblaha/saldo/internal/infrastructure/metrics"
	"github.com/vblaha/saldo/internal/infrastructure/postgres"
	"github.com/vblaha/saldo/internal/infrastructure/redis"
	"github.com/vblaha/saldo/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	log.Logger = appLogger

	// Run migrations
	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	ctx := context.Background()

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New()

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	transactionRepo := postgresRepo.NewTransactionRepository(pool)
	proposalRepo := postgresRepo.NewProposalRepository(pool)
	balanceRepo := postgresRepo.NewBalanceRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	retrier := postgresRepo.NewRetrier(appLogger)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	history := redisRepo.NewHistoryStore(redisClient, cfg.HistoryRetention)

	// Initialize anomaly detector
	anomalyCfg, err := buildAnomalyConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid anomaly thresholds")
	}
	detector := anomaly.New(anomalyCfg, history)

	// Initialize use cases
	auditTrail := usecase.NewAuditTrail(
		txManager, auditRepo, postgresRepo.NewUUIDGenerator(), appLogger, m)
	ledgerUC := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		TxManager:         txManager,
		Transactions:      transactionRepo,
		Proposals:         proposalRepo,
		Balances:          balanceRepo,
		Audit:             auditTrail,
		IDGen:             postgresRepo.NewULIDGenerator(),
		Checker:           detector,
		Retrier:           retrier,
		Logger:            appLogger,
		Metrics:           m,
		IntegrityPageSize: cfg.IntegrityPageSize,
	})

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	tidyCtx, stopTidy := context.WithCancel(ctx)
	defer stopTidy()
	go rateLimiter.Tidy(tidyCtx, time.Hour)

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		LedgerHandler:    handler.NewLedgerHandler(ledgerUC),
		AuditHandler:     handler.NewAuditHandler(auditTrail),
		AnomalyHandler:   handler.NewAnomalyHandler(detector),
		HealthHandler:    handler.NewHealthHandler(pool, redisClient),
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      rateLimiter,
		Logger:           appLogger,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// buildAnomalyConfig parses the decimal thresholds out of the environment
// configuration.
func buildAnomalyConfig(cfg *config.Config) (anomaly.Config, error) {
	highAmount, err := decimal.NewFromString(cfg.HighAmountThreshold)
	if err != nil {
		return anomaly.Config{}, fmt.Errorf("high amount threshold: %w", err)
	}

	amlCash, err := decimal.NewFromString(cfg.AMLCashThreshold)
	if err != nil {
		return anomaly.Config{}, fmt.Errorf("aml cash threshold: %w", err)
	}

	return anomaly.Config{
		HighAmountThreshold: highAmount,
		AMLCashThreshold:    amlCash,
		CashKontoPrefixes:   cfg.CashKontoPrefixes,
		DuplicateWindow:     cfg.DuplicateWindow,
		BusinessHoursStart:  cfg.BusinessHoursStart,
		BusinessHoursEnd:    cfg.BusinessHoursEnd,
		BenfordMinSample:    cfg.BenfordMinSample,
		BenfordMADThreshold: cfg.BenfordMADThreshold,
	}, nil
}
