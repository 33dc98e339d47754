package models

import (
	"time"
)

// ProcessingStatus is the lifecycle state of a curriculum document.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no pipeline run is in flight for s.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CurriculumDocument represents one uploaded curriculum file.
type CurriculumDocument struct {
	ID                string           `db:"id" json:"id"`
	FileName          string           `db:"file_name" json:"file_name"`
	SubjectTag        string           `db:"subject_tag" json:"subject_tag"`
	StoragePath       string           `db:"storage_path" json:"storage_path"` // key inside the private bucket, never rewritten
	ContentType       string           `db:"content_type" json:"content_type"`
	Status            ProcessingStatus `db:"processing_status" json:"processing_status"`
	ErrorMessage      *string          `db:"error_message" json:"error_message,omitempty"`
	ChunkCount        int              `db:"chunk_count" json:"chunk_count"`
	EmbeddingProvider *string          `db:"embedding_provider" json:"embedding_provider,omitempty"`
	UploadedAt        time.Time        `db:"uploaded_at" json:"uploaded_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// VectorRecord is one persisted chunk embedding.
type VectorRecord struct {
	ID         string    `db:"id" json:"id"` // <document_id>_chunk_<index>
	DocumentID string    `db:"document_id" json:"document_id"`
	ChunkIndex int       `db:"chunk_index" json:"chunk_index"`
	Content    string    `db:"content" json:"content"`
	Embedding  []float32 `db:"embedding" json:"embedding"` // pgvector column
	Dimension  int       `db:"dimension" json:"dimension"`
	Provider   string    `db:"provider" json:"provider"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// VectorMatch is a vector record returned from a similarity lookup.
type VectorMatch struct {
	VectorRecord
	Distance float64 `json:"distance"`
}
