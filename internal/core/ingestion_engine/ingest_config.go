package ingestion_engine

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/markdave123-py/learnbridge/internal/core"
)

// IngestConfig tunes a vectorization run.
//
// ChunkMaxChars: upper bound, in characters, for a chunk (a lone longer sentence is kept whole).
// SignedURLTTL:  lifetime of the read URL handed to the extractor.
// CallTimeout:   deadline for the signing and extraction calls.
// RunTimeout:    deadline for a whole run; 0 means no limit beyond the caller's context.
type IngestConfig struct {
	ChunkMaxChars int
	SignedURLTTL  time.Duration
	CallTimeout   time.Duration
	RunTimeout    time.Duration
}

// staleMargin is added on top of the run and cleanup deadlines before a processing row counts as abandoned.
const staleMargin = time.Minute

// StaleAfter is how long a document may sit in processing without an update before another run
// may take it over. Runs cannot outlive RunTimeout plus the cleanup window, so anything older
// belongs to a worker that died. 0 (no RunTimeout) disables takeover.
func (c *IngestConfig) StaleAfter() time.Duration {
	if c == nil || c.RunTimeout <= 0 {
		return 0
	}
	return c.RunTimeout + cleanupTimeout + staleMargin
}

// Chunk is one bounded slice of a document's text.
//
// Pos:  zero-based position inside the document; it becomes the vector's chunk_index.
// Text: non-empty chunk content.
type Chunk struct {
	Pos  int
	Text string
}

// VectorizeRequest triggers one run.
//
// DocumentID:  curriculum document to process.
// StoragePath: blob key; must equal the one on the document record.
// Force:       allow reprocessing a completed document.
type VectorizeRequest struct {
	DocumentID  string `json:"documentId"`
	StoragePath string `json:"storagePath"`
	Force       bool   `json:"force,omitempty"`
}

// RunResult describes a completed run.
type RunResult struct {
	DocumentID string `json:"documentId"`
	ChunkCount int    `json:"chunkCount"`
	Provider   string `json:"provider"`
	Dimension  int    `json:"dimension"`
	Message    string `json:"message"`
}

// Pipeline runs extract -> chunk -> embed -> persist for one document and drives its status.
//
// db:        document status and vector persistence.
// obj:       blob store that signs read URLs.
// extractor: turns the signed URL into plain text.
// embedder:  provider chain producing one vector per chunk.
// cfg:       runtime tuning knobs.
// retryDelay: pause between attempts to record a failure.
type Pipeline struct {
	db         core.DbClient
	obj        core.ObjectClient
	extractor  core.TextExtractor
	embedder   core.Embedder
	cfg        *IngestConfig
	logger     *zap.Logger
	tracer     trace.Tracer
	retryDelay time.Duration
}
