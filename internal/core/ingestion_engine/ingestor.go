package ingestion_engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/learnbridge/internal/core"
	"github.com/markdave123-py/learnbridge/internal/logger"
)

// Vectorizer runs one document through the pipeline synchronously.
type Vectorizer interface {
	Vectorize(ctx context.Context, req VectorizeRequest) (*RunResult, error)
}

// Ingestor runs vectorization jobs in the background on a bounded queue.
//
// vectorizer: the pipeline each job goes through.
// jobs:       in-memory queue of pending requests.
// g:          worker group, set by Start.
type Ingestor struct {
	vectorizer Vectorizer
	logger     *zap.Logger
	jobs       chan VectorizeRequest

	mu      sync.Mutex
	g       *errgroup.Group
	stopped <-chan struct{}
}

// NewIngestor constructs the ingestor with a queue of queueSize jobs.
func NewIngestor(v Vectorizer, queueSize int, log *zap.Logger) *Ingestor {
	if queueSize <= 0 {
		queueSize = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{vectorizer: v, logger: log, jobs: make(chan VectorizeRequest, queueSize)}
}

// Start launches numWorkers goroutines that drain the queue until ctx is cancelled.
func (i *Ingestor) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	g, gctx := errgroup.WithContext(ctx)

	i.mu.Lock()
	i.g = g
	i.stopped = gctx.Done()
	i.mu.Unlock()

	for w := 1; w <= numWorkers; w++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					i.logger.Debug("ingest worker shutting down", zap.Int("worker", w))
					return nil
				case req := <-i.jobs:
					i.process(gctx, w, req)
				}
			}
		})
	}
	i.logger.Info("ingestor started", zap.Int("workers", numWorkers), zap.Int("queue_size", cap(i.jobs)))
}

func (i *Ingestor) process(ctx context.Context, worker int, req VectorizeRequest) {
	ctx, log := logger.ForDocument(ctx, i.logger, req.DocumentID, zap.Int("worker", worker))
	log.Info("processing document")

	res, err := i.vectorizer.Vectorize(ctx, req)
	if err != nil {
		log.Error("vectorize failed", zap.Error(err))
		return
	}
	log.Info("vectorize completed", zap.Int("chunks", res.ChunkCount), zap.String("provider", res.Provider))
}

// Enqueue schedules a request. It waits for queue space until ctx is done and then returns core.ErrQueueFull.
func (i *Ingestor) Enqueue(ctx context.Context, req VectorizeRequest) error {
	i.mu.Lock()
	stopped := i.stopped
	i.mu.Unlock()

	select {
	case <-stopped:
		return fmt.Errorf("%w: ingestor stopped", core.ErrQueueFull)
	default:
	}

	select {
	case i.jobs <- req:
		return nil
	case <-stopped:
		return fmt.Errorf("%w: ingestor stopped", core.ErrQueueFull)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", core.ErrQueueFull, ctx.Err())
	}
}

// Pending returns the number of queued jobs.
func (i *Ingestor) Pending() int {
	return len(i.jobs)
}

// Wait blocks until every worker has exited.
func (i *Ingestor) Wait() error {
	i.mu.Lock()
	g := i.g
	i.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}
