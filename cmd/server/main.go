package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"cylinder-ledger/internal/adapters/events"
	webAdapter "cylinder-ledger/internal/adapters/web"
	"cylinder-ledger/internal/app"
	"cylinder-ledger/internal/cache"
	"cylinder-ledger/internal/config"
	"cylinder-ledger/internal/db"
	"cylinder-ledger/internal/logging"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := logging.NewLogger()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	var ledgerCache *cache.Cache
	if os.Getenv("REDIS_DISABLED") == "" {
		rdb, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer func() { _ = rdb.Close() }()
			ledgerCache = cache.New(rdb)
		}
	}

	svc := app.NewServices(pool)

	if os.Getenv("KAFKA_DISABLED") == "" {
		reader := events.NewReader(cfg.Kafka)
		consumer := events.NewConsumerService(reader, svc.Coordinator, ledgerCache, logger)
		go func() {
			defer func() { _ = reader.Close() }()
			if err := consumer.Start(ctx); err != nil {
				logger.Error("consumer stopped", zap.Error(err))
			}
		}()
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, ledgerCache, logger, allowedOrigins, cfg.LowStockThreshold)

	server := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: handler}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Info("server starting", zap.String("port", cfg.HTTPPort))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server", zap.Error(err))
	}
}
