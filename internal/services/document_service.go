package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/learnbridge/internal/core"
	"github.com/markdave123-py/learnbridge/internal/core/ingestion_engine"
	"github.com/markdave123-py/learnbridge/internal/models"
)

// Enqueuer schedules a background vectorization run.
type Enqueuer interface {
	Enqueue(ctx context.Context, req ingestion_engine.VectorizeRequest) error
}

// defaultEnqueueWait bounds how long Reprocess waits for room in a full queue.
const defaultEnqueueWait = 2 * time.Second

// DocumentService is the admin-facing curriculum registry: upload, list, delete, reprocess.
//
// staleAfter:  age after which a processing document is treated as abandoned; 0 never.
// enqueueWait: how long Reprocess waits for queue space before reporting it full.
type DocumentService struct {
	db          core.DbClient
	storage     core.ObjectClient
	queue       Enqueuer
	logger      *zap.Logger
	now         func() time.Time
	staleAfter  time.Duration
	enqueueWait time.Duration
}

func NewDocumentService(db core.DbClient, storage core.ObjectClient, queue Enqueuer, staleAfter time.Duration, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		db: db, storage: storage, queue: queue, logger: logger, now: time.Now,
		staleAfter:  staleAfter,
		enqueueWait: defaultEnqueueWait,
	}
}

// Register stores the binary under curriculum/<unix-ms>-<name> and creates a pending record.
// The blob is removed again if the record cannot be written.
func (s *DocumentService) Register(ctx context.Context, fileName, subjectTag, contentType string, body io.Reader) (*models.CurriculumDocument, error) {
	name := sanitizeFileName(fileName)
	subjectTag = strings.TrimSpace(subjectTag)
	if name == "" || subjectTag == "" || body == nil {
		return nil, fmt.Errorf("%w: file and subjectTag are required", core.ErrInvalidRequest)
	}
	if contentType == "" {
		contentType = "application/pdf"
	}

	key := s.objectKey(name)
	if err := s.storage.UploadFile(ctx, key, body, contentType); err != nil {
		return nil, err
	}

	doc := s.newDocument(strings.TrimSpace(fileName), subjectTag, key, contentType)
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		if derr := s.storage.DeleteFile(context.WithoutCancel(ctx), key); derr != nil {
			s.logger.Error("orphaned blob after failed insert", zap.String("key", key), zap.Error(derr))
		}
		return nil, fmt.Errorf("create document: %w", err)
	}
	s.logger.Info("curriculum document registered", zap.String("document_id", doc.ID), zap.String("key", key))
	return doc, nil
}

// RegisterExisting creates a pending record for a blob that was uploaded out of band.
func (s *DocumentService) RegisterExisting(ctx context.Context, fileName, subjectTag, storagePath string) (*models.CurriculumDocument, error) {
	fileName = strings.TrimSpace(fileName)
	subjectTag = strings.TrimSpace(subjectTag)
	storagePath = strings.TrimSpace(storagePath)
	if fileName == "" || subjectTag == "" || storagePath == "" {
		return nil, fmt.Errorf("%w: fileName, subjectTag and storagePath are required", core.ErrInvalidRequest)
	}
	if strings.Contains(storagePath, "..") || strings.HasPrefix(storagePath, "/") {
		return nil, fmt.Errorf("%w: storagePath must be a relative key", core.ErrInvalidRequest)
	}

	doc := s.newDocument(fileName, subjectTag, storagePath, "application/pdf")
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, subjectTag string) ([]models.CurriculumDocument, error) {
	docs, err := s.db.ListDocuments(ctx, strings.TrimSpace(subjectTag))
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.CurriculumDocument{}
	}
	return docs, nil
}

// Get loads one document. Ids that are not UUIDs are rejected before reaching the database.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.CurriculumDocument, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: id %q is not a UUID", core.ErrInvalidRequest, id)
	}
	doc, err := s.db.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	return doc, nil
}

// Delete removes the blob, the vectors and the record. A document with a live run is left alone.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.busy(doc) {
		return core.ErrAlreadyProcessing
	}

	if err := s.storage.DeleteFile(ctx, doc.StoragePath); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := s.db.DeleteDocumentVectors(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.db.DeleteDocument(ctx, doc.ID); err != nil && !errors.Is(err, core.ErrDocumentNotFound) {
		return fmt.Errorf("delete document: %w", err)
	}
	s.logger.Info("curriculum document deleted", zap.String("document_id", doc.ID))
	return nil
}

// Reprocess queues a forced run. Completed documents are re-embedded; their vectors are replaced.
// A full queue is reported as core.ErrQueueFull after enqueueWait instead of holding the request open.
func (s *DocumentService) Reprocess(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.busy(doc) {
		return core.ErrAlreadyProcessing
	}

	ectx, cancel := context.WithTimeout(ctx, s.enqueueWait)
	defer cancel()
	return s.queue.Enqueue(ectx, ingestion_engine.VectorizeRequest{
		DocumentID:  doc.ID,
		StoragePath: doc.StoragePath,
		Force:       true,
	})
}

// busy reports whether a run still owns the document. A processing row that has not been
// touched for staleAfter belongs to a dead worker and may be deleted or reprocessed.
func (s *DocumentService) busy(doc *models.CurriculumDocument) bool {
	if doc.Status != models.StatusProcessing {
		return false
	}
	return s.staleAfter <= 0 || s.now().Sub(doc.UpdatedAt) <= s.staleAfter
}

func (s *DocumentService) newDocument(fileName, subjectTag, storagePath, contentType string) *models.CurriculumDocument {
	now := s.now().UTC()
	return &models.CurriculumDocument{
		ID:          uuid.NewString(),
		FileName:    fileName,
		SubjectTag:  subjectTag,
		StoragePath: storagePath,
		ContentType: contentType,
		Status:      models.StatusPending,
		UploadedAt:  now,
		UpdatedAt:   now,
	}
}

// objectKey creates a consistent S3 key layout.
func (s *DocumentService) objectKey(name string) string {
	return path.Join("curriculum", fmt.Sprintf("%d-%s", s.now().UnixMilli(), name))
}

// sanitizeFileName keeps the base name and replaces anything outside [A-Za-z0-9._-] with '_'.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
