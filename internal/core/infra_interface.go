package core

import (
	"context"
	"io"
	"time"

	"github.com/markdave123-py/learnbridge/internal/models"
)

// DbClient defines all persistence operations the pipeline and admin services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	CreateDocument(ctx context.Context, doc *models.CurriculumDocument) error
	GetDocumentByID(ctx context.Context, id string) (*models.CurriculumDocument, error)
	ListDocuments(ctx context.Context, subjectTag string) ([]models.CurriculumDocument, error)
	DeleteDocument(ctx context.Context, id string) error

	// ClaimDocument moves the document to processing only if its current status is in allowed,
	// or if it has sat in processing without an update for longer than staleAfter (0 disables takeover).
	// It returns false when no row matched.
	ClaimDocument(ctx context.Context, id string, allowed []models.ProcessingStatus, staleAfter time.Duration) (bool, error)
	MarkDocumentCompleted(ctx context.Context, id string, chunkCount int, provider string) error
	MarkDocumentFailed(ctx context.Context, id string, message string) error

	// ReplaceDocumentVectors removes any prior vectors of the document and writes records in one transaction.
	ReplaceDocumentVectors(ctx context.Context, documentID string, records []models.VectorRecord) error
	DeleteDocumentVectors(ctx context.Context, documentID string) error
	CountDocumentVectors(ctx context.Context, documentID string) (int, error)
	// SearchVectors only compares against vectors written by provider with the query's dimension.
	SearchVectors(ctx context.Context, queryVec []float32, provider, subjectTag string, limit int) ([]models.VectorMatch, error)
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so you can replace AWS with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data io.Reader, contentType string) error
	DeleteFile(ctx context.Context, key string) error
	CreateSignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
