package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/learnbridge/internal/config"
	"github.com/markdave123-py/learnbridge/internal/core"
)

// NewChainFromConfig builds adapters for every configured provider, in order.
// The returned close func releases SDK clients that hold connections.
func NewChainFromConfig(ctx context.Context, providers []config.ProviderConfig, defaultTimeout time.Duration, logger *zap.Logger) (*Chain, func() error, error) {
	if len(providers) == 0 {
		return nil, nil, fmt.Errorf("no embedding providers configured")
	}

	httpClient := &http.Client{}
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	entries := make([]Provider, 0, len(providers))
	for _, pc := range providers {
		emb, closer, err := newAdapter(ctx, httpClient, pc)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		if closer != nil {
			closers = append(closers, closer)
		}

		timeout := pc.Timeout()
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		var limiter *rate.Limiter
		if pc.RequestsPerSecond > 0 {
			limiter = rate.NewLimiter(rate.Limit(pc.RequestsPerSecond), 1)
		}

		entries = append(entries, Provider{
			Name:        pc.Name,
			Embedder:    emb,
			BatchSize:   pc.BatchSize,
			MaxAttempts: pc.MaxAttempts,
			Backoff:     pc.Backoff(),
			Timeout:     timeout,
			Limiter:     limiter,
		})
		logger.Info("embedding provider configured",
			zap.String("provider", pc.Name), zap.String("kind", pc.Kind), zap.String("model", pc.Model),
			zap.Int("batch_size", pc.BatchSize))
	}

	return NewChain(logger, entries...), closeAll, nil
}

func newAdapter(ctx context.Context, client *http.Client, pc config.ProviderConfig) (core.EmbeddingProvider, func() error, error) {
	switch pc.Kind {
	case config.KindHuggingFace:
		return NewHuggingFaceEmbedder(client, pc.BaseURL, pc.Model, pc.APIKey), nil, nil
	case config.KindCohere:
		return NewCohereEmbedder(client, pc.BaseURL, pc.Model, pc.APIKey), nil, nil
	case config.KindOpenAI:
		return NewOpenAIEmbedder(client, pc.BaseURL, pc.Model, pc.APIKey), nil, nil
	case config.KindGemini:
		g, err := NewGeminiEmbedder(ctx, pc.APIKey, pc.Model)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider kind %q", pc.Kind)
	}
}
