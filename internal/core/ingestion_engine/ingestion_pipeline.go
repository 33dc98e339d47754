package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/markdave123-py/learnbridge/internal/core"
	"github.com/markdave123-py/learnbridge/internal/logger"
	"github.com/markdave123-py/learnbridge/internal/metrics"
	"github.com/markdave123-py/learnbridge/internal/models"
)

const (
	tracerName      = "github.com/markdave123-py/learnbridge/ingestion"
	maxErrorMessage = 2000
	cleanupTimeout  = 30 * time.Second
	failAttempts    = 3
)

// NewPipeline wires the run collaborators. A nil logger is replaced by a no-op one.
func NewPipeline(db core.DbClient, obj core.ObjectClient, extractor core.TextExtractor, embedder core.Embedder, cfg *IngestConfig, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg == nil {
		cfg = &IngestConfig{}
	}
	return &Pipeline{
		db: db, obj: obj, extractor: extractor, embedder: embedder, cfg: cfg,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
		retryDelay: 500 * time.Millisecond,
	}
}

// Vectorize claims the document, runs every stage and records the outcome on the document.
// Rejections (invalid request, not found, path mismatch, already processing/completed) leave the document untouched.
// Any stage failure marks the document failed and returns a *core.StageError.
func (p *Pipeline) Vectorize(ctx context.Context, req VectorizeRequest) (*RunResult, error) {
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	req.StoragePath = strings.TrimSpace(req.StoragePath)
	if req.DocumentID == "" || req.StoragePath == "" {
		metrics.VectorizeRunsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: documentId and storagePath are required", core.ErrInvalidRequest)
	}
	if _, err := uuid.Parse(req.DocumentID); err != nil {
		metrics.VectorizeRunsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: documentId %q is not a UUID", core.ErrInvalidRequest, req.DocumentID)
	}

	ctx, span := p.tracer.Start(ctx, "vectorize.run", trace.WithAttributes(
		attribute.String("document.id", req.DocumentID),
		attribute.Bool("force", req.Force),
	))
	defer span.End()

	ctx, log := logger.ForDocument(ctx, p.logger, req.DocumentID)

	doc, err := p.claim(ctx, req)
	if err != nil {
		metrics.VectorizeRunsTotal.WithLabelValues("rejected").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Info("vectorize rejected", zap.Error(err))
		return nil, err
	}
	log.Info("document status changed", zap.String("from", string(doc.Status)), zap.String("to", string(models.StatusProcessing)))

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
	}
	defer cancel()

	res, err := p.run(runCtx, doc)
	if err != nil {
		p.fail(ctx, log, doc.ID, err)
		metrics.VectorizeRunsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.VectorizeRunsTotal.WithLabelValues("completed").Inc()
	metrics.VectorizeChunksTotal.Add(float64(res.ChunkCount))
	span.SetAttributes(attribute.Int("chunks", res.ChunkCount), attribute.String("provider", res.Provider))
	log.Info("document status changed",
		zap.String("from", string(models.StatusProcessing)), zap.String("to", string(models.StatusCompleted)),
		zap.Int("chunks", res.ChunkCount), zap.String("provider", res.Provider), zap.Int("dimension", res.Dimension))
	return res, nil
}

// claim validates the request against the record and moves the document to processing.
// A row left in processing by a dead worker is taken over once it is older than StaleAfter.
func (p *Pipeline) claim(ctx context.Context, req VectorizeRequest) (*models.CurriculumDocument, error) {
	doc, err := p.db.GetDocumentByID(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, req.DocumentID)
	}
	if doc.StoragePath != req.StoragePath {
		return nil, fmt.Errorf("%w: got %q", core.ErrStoragePathMismatch, req.StoragePath)
	}

	allowed := []models.ProcessingStatus{models.StatusPending, models.StatusFailed}
	if req.Force {
		allowed = append(allowed, models.StatusCompleted)
	}
	ok, err := p.db.ClaimDocument(ctx, doc.ID, allowed, p.cfg.StaleAfter())
	if err != nil {
		return nil, fmt.Errorf("claim document: %w", err)
	}
	if ok {
		return doc, nil
	}

	// Lost the compare-and-swap; report what the row holds now.
	cur, err := p.db.GetDocumentByID(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("reload document: %w", err)
	}
	switch {
	case cur == nil:
		return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, doc.ID)
	case cur.Status == models.StatusCompleted:
		return nil, core.ErrAlreadyCompleted
	default:
		return nil, core.ErrAlreadyProcessing
	}
}

func (p *Pipeline) run(ctx context.Context, doc *models.CurriculumDocument) (*RunResult, error) {
	var (
		signedURL string
		text      string
		chunks    []Chunk
		emb       *core.Embedding
	)

	if err := p.stage(ctx, core.StageSign, func(ctx context.Context) error {
		callCtx, cancel := p.callContext(ctx)
		defer cancel()
		u, err := p.obj.CreateSignedURL(callCtx, doc.StoragePath, p.cfg.SignedURLTTL)
		signedURL = u
		return err
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, core.StageExtract, func(ctx context.Context) error {
		callCtx, cancel := p.callContext(ctx)
		defer cancel()
		t, err := p.extractor.ExtractText(callCtx, signedURL)
		if err != nil {
			if errors.Is(err, core.ErrExtractionFailed) {
				return err
			}
			return fmt.Errorf("%w: %w", core.ErrExtractionFailed, err)
		}
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: no text content extracted", core.ErrExtractionFailed)
		}
		text = t
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, core.StageChunk, func(context.Context) error {
		c, err := ChunkText(text, p.maxChars())
		chunks = c
		return err
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, core.StageEmbed, func(ctx context.Context) error {
		texts := make([]string, len(chunks))
		for i := range chunks {
			texts[i] = chunks[i].Text
		}
		e, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		if len(e.Vectors) != len(chunks) {
			return fmt.Errorf("%w: %d chunks, %d vectors", core.ErrEmbeddingCountMismatch, len(chunks), len(e.Vectors))
		}
		for i, v := range e.Vectors {
			if len(v) != e.Dimension || e.Dimension == 0 {
				return fmt.Errorf("%w: vector %d has %d values, expected %d",
					core.ErrEmbeddingDimensionMismatch, i, len(v), e.Dimension)
			}
		}
		emb = e
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, core.StagePersist, func(ctx context.Context) error {
		records := make([]models.VectorRecord, len(chunks))
		for i, c := range chunks {
			records[i] = models.VectorRecord{
				ID:         VectorID(doc.ID, c.Pos),
				DocumentID: doc.ID,
				ChunkIndex: c.Pos,
				Content:    c.Text,
				Embedding:  emb.Vectors[i],
				Dimension:  emb.Dimension,
				Provider:   emb.Provider,
			}
		}
		if err := p.db.ReplaceDocumentVectors(ctx, doc.ID, records); err != nil {
			return fmt.Errorf("%w: %w", core.ErrPersistenceFailed, err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, core.StageFinalize, func(ctx context.Context) error {
		return p.db.MarkDocumentCompleted(ctx, doc.ID, len(chunks), emb.Provider)
	}); err != nil {
		return nil, err
	}

	return &RunResult{
		DocumentID: doc.ID,
		ChunkCount: len(chunks),
		Provider:   emb.Provider,
		Dimension:  emb.Dimension,
		Message:    fmt.Sprintf("Indexed %d chunks.", len(chunks)),
	}, nil
}

// stage runs fn under its own span and duration metric; panics become stage errors.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "vectorize."+name)
	defer span.End()

	start := time.Now()
	err := safeCall(ctx, fn)
	metrics.VectorizeStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &core.StageError{Stage: name, Err: err}
	}
	return nil
}

func safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// fail purges any vectors of the document and moves it to failed.
// It runs detached from ctx so a cancelled or timed-out run still reaches a terminal state.
// Recording the failure is retried; if every attempt fails the row stays in processing
// until a later claim takes it over as stale.
func (p *Pipeline) fail(ctx context.Context, log *zap.Logger, docID string, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := p.db.DeleteDocumentVectors(cctx, docID); err != nil {
		log.Error("purge vectors after failed run", zap.Error(err))
	}
	msg := truncateMessage(cause.Error())
	var err error
	for attempt := 1; attempt <= failAttempts; attempt++ {
		if err = p.db.MarkDocumentFailed(cctx, docID, msg); err == nil {
			break
		}
		log.Warn("mark document failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == failAttempts {
			break
		}
		select {
		case <-cctx.Done():
			err = cctx.Err()
		case <-time.After(p.retryDelay * time.Duration(attempt)):
		}
		if cctx.Err() != nil {
			break
		}
	}
	if err != nil {
		log.Error("document left in processing", zap.Error(err), zap.Duration("stale_after", p.cfg.StaleAfter()))
		return
	}
	log.Warn("document status changed",
		zap.String("from", string(models.StatusProcessing)), zap.String("to", string(models.StatusFailed)),
		zap.Error(cause))
}

func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.CallTimeout)
	}
	return ctx, func() {}
}

func (p *Pipeline) maxChars() int {
	if p.cfg.ChunkMaxChars > 0 {
		return p.cfg.ChunkMaxChars
	}
	return 1000
}

// VectorID is the stable id of a document's chunk vector.
func VectorID(documentID string, pos int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, pos)
}

func truncateMessage(s string) string {
	if utf8.RuneCountInString(s) <= maxErrorMessage {
		return s
	}
	r := []rune(s)
	return string(r[:maxErrorMessage-3]) + "..."
}
