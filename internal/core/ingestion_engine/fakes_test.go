package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/markdave123-py/learnbridge/internal/core"
	"github.com/markdave123-py/learnbridge/internal/models"
)

// memDB is an in-memory core.DbClient with the same compare-and-swap semantics as the SQL client.
type memDB struct {
	mu         sync.Mutex
	docs       map[string]*models.CurriculumDocument
	vectors    map[string][]models.VectorRecord
	replaceErr error
	claims     int
	// failMarkFailed makes the next n MarkDocumentFailed calls return an error.
	failMarkFailed  int
	markFailedCalls int
}

var _ core.DbClient = (*memDB)(nil)

func newMemDB(docs ...models.CurriculumDocument) *memDB {
	db := &memDB{docs: map[string]*models.CurriculumDocument{}, vectors: map[string][]models.VectorRecord{}}
	for _, d := range docs {
		db.docs[d.ID] = &d
	}
	return db
}

func (m *memDB) doc(id string) models.CurriculumDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.docs[id]
}

func (m *memDB) vectorCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vectors[id])
}

func (m *memDB) CreateDocument(_ context.Context, doc *models.CurriculumDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; ok {
		return fmt.Errorf("duplicate id %s", doc.ID)
	}
	d := *doc
	m.docs[d.ID] = &d
	return nil
}

func (m *memDB) GetDocumentByID(_ context.Context, id string) (*models.CurriculumDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memDB) ListDocuments(_ context.Context, subjectTag string) ([]models.CurriculumDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CurriculumDocument
	for _, d := range m.docs {
		if subjectTag == "" || d.SubjectTag == subjectTag {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memDB) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return core.ErrDocumentNotFound
	}
	delete(m.docs, id)
	delete(m.vectors, id)
	return nil
}

func (m *memDB) ClaimDocument(_ context.Context, id string, allowed []models.ProcessingStatus, staleAfter time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims++
	d, ok := m.docs[id]
	if !ok {
		return false, nil
	}
	stale := staleAfter > 0 && d.Status == models.StatusProcessing && time.Since(d.UpdatedAt) > staleAfter
	if !stale && !slices.Contains(allowed, d.Status) {
		return false, nil
	}
	d.Status = models.StatusProcessing
	d.ErrorMessage = nil
	d.UpdatedAt = time.Now()
	return true, nil
}

func (m *memDB) MarkDocumentCompleted(_ context.Context, id string, chunkCount int, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || d.Status != models.StatusProcessing {
		return errors.New("not processing")
	}
	d.Status = models.StatusCompleted
	d.ChunkCount = chunkCount
	d.EmbeddingProvider = &provider
	return nil
}

func (m *memDB) MarkDocumentFailed(_ context.Context, id string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markFailedCalls++
	if m.failMarkFailed > 0 {
		m.failMarkFailed--
		return errors.New("connection reset by peer")
	}
	d, ok := m.docs[id]
	if !ok || d.Status != models.StatusProcessing {
		return errors.New("not processing")
	}
	d.Status = models.StatusFailed
	d.ErrorMessage = &message
	d.ChunkCount = 0
	return nil
}

func (m *memDB) ReplaceDocumentVectors(_ context.Context, documentID string, records []models.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.vectors[documentID] = append([]models.VectorRecord(nil), records...)
	return nil
}

func (m *memDB) DeleteDocumentVectors(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, documentID)
	return nil
}

func (m *memDB) CountDocumentVectors(_ context.Context, documentID string) (int, error) {
	return m.vectorCount(documentID), nil
}

func (m *memDB) SearchVectors(context.Context, []float32, string, string, int) ([]models.VectorMatch, error) {
	return nil, nil
}

type memObjects struct {
	signErr error
}

func (o *memObjects) UploadFile(context.Context, string, io.Reader, string) error { return nil }
func (o *memObjects) DeleteFile(context.Context, string) error                    { return nil }
func (o *memObjects) CreateSignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if o.signErr != nil {
		return "", o.signErr
	}
	return fmt.Sprintf("https://blob.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

type extractFunc func(ctx context.Context, url string) (string, error)

func (f extractFunc) ExtractText(ctx context.Context, url string) (string, error) { return f(ctx, url) }

func staticText(s string) extractFunc {
	return func(context.Context, string) (string, error) { return s, nil }
}

type embedFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f embedFunc) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

func vectorsOf(dim int) embedFunc {
	return func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = make([]float32, dim)
			out[i][0] = float32(i)
		}
		return out, nil
	}
}

func failing(err error) embedFunc {
	return func(context.Context, []string) ([][]float32, error) { return nil, err }
}
