package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/markdave123-py/learnbridge/internal/app"
	"github.com/markdave123-py/learnbridge/internal/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := app.LoadRuntime()
	if err != nil {
		if logger != nil {
			logger.Fatal("startup failed", zap.Error(err))
		}
		log.Fatalf("startup failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.RegisterMetrics()

	application, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer application.Close()

	logger.Info("learnbridge vectorizer is running",
		zap.String("env", cfg.Env),
		zap.String("extractor", cfg.Extractor),
		zap.Strings("providers", application.Embedder.Providers()),
		zap.Int("workers", cfg.Workers),
	)

	if err := application.Run(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
	}
	logger.Info("shut down cleanly")
}
