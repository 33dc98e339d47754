package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/learnbridge/internal/core"
	"github.com/markdave123-py/learnbridge/internal/metrics"
)

// Provider is one entry of the failover chain.
//
// Name:        label used in logs, metrics and the document's embedding_provider column.
// Embedder:    the adapter that talks to the remote service.
// BatchSize:   max texts per request; the chunk list is split into sequential sub-batches.
// MaxAttempts: tries per sub-batch before the provider is abandoned (transient errors only).
// Backoff:     base retry delay; attempt n waits Backoff*n.
// Timeout:     per-request deadline; 0 means no deadline beyond the caller's.
// Limiter:     optional request pacing; nil means unlimited.
type Provider struct {
	Name        string
	Embedder    core.EmbeddingProvider
	BatchSize   int
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
	Limiter     *rate.Limiter
}

// Chain tries providers strictly in order and returns the first complete result.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

var _ core.Embedder = (*Chain)(nil)

func NewChain(logger *zap.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{providers: providers, logger: logger, sleep: sleepCtx}
}

// Providers returns the configured provider names in priority order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name
	}
	return names
}

// Embed returns one vector per text, all produced by the same provider.
// Count or dimension violations abort the chain; every other provider failure moves on to the next entry.
func (c *Chain) Embed(ctx context.Context, texts []string) (*core.Embedding, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: nothing to embed", core.ErrInvalidRequest)
	}

	var failures []*core.ProviderError
	for i, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vecs, attempts, err := c.runProvider(ctx, p, texts)
		if err == nil {
			dim, verr := checkVectors(vecs, len(texts))
			if verr != nil {
				c.logger.Error("embedding postcondition violated", zap.String("provider", p.Name), zap.Error(verr))
				return nil, &core.ProviderError{Provider: p.Name, Attempts: attempts, Err: verr}
			}
			if i > 0 {
				c.logger.Info("embedded after failover", zap.String("provider", p.Name), zap.Int("skipped", i))
			}
			return &core.Embedding{Provider: p.Name, Vectors: vecs, Dimension: dim}, nil
		}

		if isPostcondition(err) {
			c.logger.Error("embedding postcondition violated", zap.String("provider", p.Name), zap.Error(err))
			return nil, &core.ProviderError{Provider: p.Name, Attempts: attempts, Err: err}
		}
		// The caller gave up, not the provider.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		c.logger.Warn("embedding provider failed, trying next",
			zap.String("provider", p.Name), zap.Int("attempts", attempts), zap.Error(err))
		metrics.EmbeddingFailoversTotal.WithLabelValues(p.Name).Inc()
		failures = append(failures, &core.ProviderError{Provider: p.Name, Attempts: attempts, Err: err})
	}

	return nil, &core.ExhaustedError{Failures: failures}
}

// runProvider embeds every text with one provider, batch by batch, preserving order.
func (c *Chain) runProvider(ctx context.Context, p Provider, texts []string) ([][]float32, int, error) {
	size := p.BatchSize
	if size <= 0 {
		size = len(texts)
	}

	out := make([][]float32, 0, len(texts))
	attempts := 0
	for start, batch := 0, 0; start < len(texts); start, batch = start+size, batch+1 {
		end := min(start+size, len(texts))
		part := texts[start:end]

		vecs, n, err := c.embedBatch(ctx, p, part, batch)
		attempts += n
		if err != nil {
			return nil, attempts, err
		}
		if len(vecs) != len(part) {
			return nil, attempts, fmt.Errorf("%w: batch %d sent %d texts, got %d vectors",
				core.ErrEmbeddingCountMismatch, batch, len(part), len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, attempts, nil
}

func (c *Chain) embedBatch(ctx context.Context, p Provider, texts []string, batch int) ([][]float32, int, error) {
	maxAttempts := max(p.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return nil, attempt - 1, err
			}
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		start := time.Now()
		vecs, err := p.Embedder.EmbedTexts(callCtx, texts)
		cancel()
		elapsed := time.Since(start)
		metrics.EmbeddingRequestDuration.WithLabelValues(p.Name).Observe(elapsed.Seconds())

		if err == nil {
			metrics.EmbeddingRequestsTotal.WithLabelValues(p.Name, "ok").Inc()
			c.logger.Debug("embedding batch ok",
				zap.String("provider", p.Name), zap.Int("attempt", attempt), zap.Int("batch", batch),
				zap.Int("texts", len(texts)), zap.Duration("duration", elapsed))
			return vecs, attempt, nil
		}

		retry := IsTransient(err) && attempt < maxAttempts && ctx.Err() == nil
		c.logger.Warn("embedding batch failed",
			zap.String("provider", p.Name), zap.Int("attempt", attempt), zap.Int("batch", batch),
			zap.Duration("duration", elapsed), zap.Bool("retry", retry), zap.Error(err))
		if !retry {
			metrics.EmbeddingRequestsTotal.WithLabelValues(p.Name, "error").Inc()
			return nil, attempt, err
		}
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.Name, "retry").Inc()

		if err := c.sleep(ctx, p.Backoff*time.Duration(attempt)); err != nil {
			return nil, attempt, err
		}
	}
}

// checkVectors returns the shared dimension of vecs.
func checkVectors(vecs [][]float32, want int) (int, error) {
	if len(vecs) != want {
		return 0, fmt.Errorf("%w: %d texts, %d vectors", core.ErrEmbeddingCountMismatch, want, len(vecs))
	}
	dim := len(vecs[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: vector 0 is empty", core.ErrEmbeddingDimensionMismatch)
	}
	for i, v := range vecs {
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has %d values, expected %d",
				core.ErrEmbeddingDimensionMismatch, i, len(v), dim)
		}
	}
	return dim, nil
}

func isPostcondition(err error) bool {
	return errors.Is(err, core.ErrEmbeddingCountMismatch) || errors.Is(err, core.ErrEmbeddingDimensionMismatch)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
