package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExtractionFailed signals that the conversion service was unreachable or returned no usable text.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrEmptyDocument signals that extracted text produced no chunks.
	ErrEmptyDocument = errors.New("no valid text chunks found in document")
	// ErrAllProvidersExhausted signals that every configured embedding provider failed.
	ErrAllProvidersExhausted = errors.New("all embedding providers failed")
	// ErrEmbeddingCountMismatch signals a provider returned a different number of vectors than inputs.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
	// ErrEmbeddingDimensionMismatch signals vectors of differing length within one run.
	ErrEmbeddingDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrPersistenceFailed signals the bulk vector write failed.
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrDocumentNotFound signals a missing curriculum document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrAlreadyProcessing signals a run is already in flight for the document.
	ErrAlreadyProcessing = errors.New("document is already processing")
	// ErrAlreadyCompleted signals the document is completed and reprocessing was not requested.
	ErrAlreadyCompleted = errors.New("document is already completed")
	// ErrStoragePathMismatch signals the trigger named a different blob than the document record.
	ErrStoragePathMismatch = errors.New("storage path does not match document")
	// ErrInvalidRequest signals missing or malformed input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrQueueFull signals the background queue could not accept a job.
	ErrQueueFull = errors.New("ingest queue is full")
)

// Pipeline stages, used in StageError and metrics labels.
const (
	StageSign     = "sign"
	StageExtract  = "extract"
	StageChunk    = "chunk"
	StageEmbed    = "embed"
	StagePersist  = "persist"
	StageFinalize = "finalize"
)

// StageError records which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response from an external HTTP service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	if body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, body)
}

// ProviderError is the final error of one embedding provider within a run.
type ProviderError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ExhaustedError carries every provider failure of a run and unwraps to ErrAllProvidersExhausted.
type ExhaustedError struct {
	Failures []*ProviderError
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return ErrAllProvidersExhausted.Error() + ": no providers configured"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return ErrAllProvidersExhausted.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures)+1)
	out = append(out, ErrAllProvidersExhausted)
	for _, f := range e.Failures {
		out = append(out, f)
	}
	return out
}
