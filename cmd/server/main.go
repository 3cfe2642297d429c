package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/swiftpay/wallet-service/internal/config"
	"github.com/swiftpay/wallet-service/internal/db"
	"github.com/swiftpay/wallet-service/internal/domain"
	"github.com/swiftpay/wallet-service/internal/events"
	"github.com/swiftpay/wallet-service/internal/logging"
	"github.com/swiftpay/wallet-service/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready")

	accountRepo := db.NewAccountRepository(pool.Pool)
	ledgerRepo := db.NewLedgerRepository(pool.Pool)
	txManager := db.NewTransactionManager(pool.Pool)

	// The event publisher is best-effort: the wallet keeps working when the
	// broker is unreachable at startup.
	var publisher domain.EventPublisher
	if cfg.RabbitMQ.Enabled {
		rabbit, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey)
		if err != nil {
			logger.Warn("event publisher unavailable, continuing without events", "error", err)
		} else {
			defer rabbit.Close()
			publisher = rabbit
			logger.Info("event publisher connected", "exchange", cfg.RabbitMQ.Exchange)
		}
	}

	wallet := domain.NewWalletService(accountRepo, ledgerRepo, txManager, publisher, logger)

	handlers := server.NewAPIHandlers(logger, wallet)
	router := server.NewRouter(logger, server.RouterDependencies{
		Health:            dbHealth{pool: pool},
		API:               handlers,
		AdminPasswordHash: cfg.Admin.PasswordHash,
	})

	srv := server.New(logger, cfg.HTTP, router)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}

// dbHealth adapts the connection pool to the router's health probe.
type dbHealth struct {
	pool *db.Pool
}

func (h dbHealth) Probe(ctx context.Context) error {
	return h.pool.Ping(ctx)
}
