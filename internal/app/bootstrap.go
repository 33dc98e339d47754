package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/markdave123-py/learnbridge/internal/config"
	"github.com/markdave123-py/learnbridge/internal/logger"
)

// LoadRuntime reads configuration, builds the logger and resolves the embedding provider chain.
func LoadRuntime() (*config.Config, *zap.Logger, error) {
	cfg := config.LoadConfig()

	log, err := logger.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}

	skipped, err := cfg.ResolveProviders()
	if err != nil {
		return nil, log, err
	}
	for _, name := range skipped {
		log.Warn("embedding provider skipped: no API key configured", zap.String("provider", name))
	}

	if err := cfg.Validate(); err != nil {
		return nil, log, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, log, nil
}
