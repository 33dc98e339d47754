package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/learnbridge/internal/core"
	"github.com/markdave123-py/learnbridge/internal/core/ingestion_engine"
	"github.com/markdave123-py/learnbridge/internal/models"
)

type fakeDB struct {
	core.DbClient // unused methods panic

	mu        sync.Mutex
	docs      map[string]*models.CurriculumDocument
	vectors   map[string]int
	createErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{docs: map[string]*models.CurriculumDocument{}, vectors: map[string]int{}}
}

func (f *fakeDB) CreateDocument(_ context.Context, doc *models.CurriculumDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDB) GetDocumentByID(_ context.Context, id string) (*models.CurriculumDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDB) ListDocuments(_ context.Context, subjectTag string) ([]models.CurriculumDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CurriculumDocument
	for _, d := range f.docs {
		if subjectTag == "" || d.SubjectTag == subjectTag {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDB) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	return nil
}

func (f *fakeDB) DeleteDocumentVectors(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, id)
	return nil
}

type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string]string
	uploadErr error
	deleteErr error
}

func newFakeStorage() *fakeStorage { return &fakeStorage{objects: map[string]string{}} }

func (s *fakeStorage) UploadFile(_ context.Context, key string, data io.Reader, _ string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = string(b)
	s.mu.Unlock()
	return nil
}

func (s *fakeStorage) DeleteFile(_ context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *fakeStorage) CreateSignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

type fakeQueue struct {
	reqs []ingestion_engine.VectorizeRequest
	err  error
	// full makes Enqueue wait for ctx like a saturated ingestor.
	full bool
}

func (q *fakeQueue) Enqueue(ctx context.Context, req ingestion_engine.VectorizeRequest) error {
	if q.full {
		<-ctx.Done()
		return fmt.Errorf("%w: %w", core.ErrQueueFull, ctx.Err())
	}
	if q.err != nil {
		return q.err
	}
	q.reqs = append(q.reqs, req)
	return nil
}

func newTestService() (*DocumentService, *fakeDB, *fakeStorage, *fakeQueue) {
	db, st, q := newFakeDB(), newFakeStorage(), &fakeQueue{}
	svc := NewDocumentService(db, st, q, time.Hour, nil)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, db, st, q
}

func TestRegister_UploadsAndCreatesPending(t *testing.T) {
	svc, db, st, _ := newTestService()

	doc, err := svc.Register(context.Background(), "Year 9 Algebra.pdf", "math", "", strings.NewReader("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, "curriculum/1700000000000-Year_9_Algebra.pdf", doc.StoragePath)
	assert.Equal(t, models.StatusPending, doc.Status)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "%PDF", st.objects[doc.StoragePath])
	assert.Contains(t, db.docs, doc.ID)
}

func TestRegister_RemovesBlobWhenInsertFails(t *testing.T) {
	svc, db, st, _ := newTestService()
	db.createErr = errors.New("db down")

	_, err := svc.Register(context.Background(), "a.pdf", "math", "application/pdf", strings.NewReader("x"))
	require.Error(t, err)
	assert.Empty(t, st.objects)
}

func TestRegister_RequiresFileAndSubject(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Register(context.Background(), "", "math", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, core.ErrInvalidRequest)

	_, err = svc.Register(context.Background(), "a.pdf", "  ", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestRegisterExisting(t *testing.T) {
	svc, db, _, _ := newTestService()

	doc, err := svc.RegisterExisting(context.Background(), "a.pdf", "science", "curriculum/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "curriculum/a.pdf", db.docs[doc.ID].StoragePath)

	_, err = svc.RegisterExisting(context.Background(), "a.pdf", "science", "../etc/passwd")
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestListAndGet(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	math, err := svc.RegisterExisting(ctx, "a.pdf", "math", "k/a")
	require.NoError(t, err)
	_, err = svc.RegisterExisting(ctx, "b.pdf", "history", "k/b")
	require.NoError(t, err)

	docs, err := svc.List(ctx, "math")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, math.ID, docs[0].ID)

	empty, err := svc.List(ctx, "art")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.Get(ctx, "5f0c6a7e-0000-4000-8000-00000000ffff")
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)
}

func TestGet_RejectsNonUUID(t *testing.T) {
	svc, _, _, q := newTestService()
	ctx := context.Background()

	for _, id := range []string{"missing", "", "../etc/passwd", "5f0c6a7e-0000"} {
		_, err := svc.Get(ctx, id)
		assert.ErrorIs(t, err, core.ErrInvalidRequest, id)
	}
	assert.ErrorIs(t, svc.Delete(ctx, "missing"), core.ErrInvalidRequest)
	assert.ErrorIs(t, svc.Reprocess(ctx, "missing"), core.ErrInvalidRequest)
	assert.Empty(t, q.reqs)
}

func TestDelete(t *testing.T) {
	svc, db, st, _ := newTestService()
	ctx := context.Background()

	doc, err := svc.Register(ctx, "a.pdf", "math", "", strings.NewReader("x"))
	require.NoError(t, err)
	db.vectors[doc.ID] = 3

	require.NoError(t, svc.Delete(ctx, doc.ID))
	assert.NotContains(t, db.docs, doc.ID)
	assert.NotContains(t, db.vectors, doc.ID)
	assert.Empty(t, st.objects)

	assert.ErrorIs(t, svc.Delete(ctx, doc.ID), core.ErrDocumentNotFound)
}

func TestDelete_RefusesWhileProcessing(t *testing.T) {
	svc, db, st, _ := newTestService()
	ctx := context.Background()

	doc, err := svc.Register(ctx, "a.pdf", "math", "", strings.NewReader("x"))
	require.NoError(t, err)
	db.docs[doc.ID].Status = models.StatusProcessing

	assert.ErrorIs(t, svc.Delete(ctx, doc.ID), core.ErrAlreadyProcessing)
	assert.Contains(t, db.docs, doc.ID)
	assert.Len(t, st.objects, 1)
}

func TestDelete_AllowsStaleProcessing(t *testing.T) {
	svc, db, st, _ := newTestService()
	ctx := context.Background()

	doc, err := svc.Register(ctx, "a.pdf", "math", "", strings.NewReader("x"))
	require.NoError(t, err)
	db.docs[doc.ID].Status = models.StatusProcessing
	db.docs[doc.ID].UpdatedAt = svc.now().Add(-2 * time.Hour)

	require.NoError(t, svc.Delete(ctx, doc.ID))
	assert.NotContains(t, db.docs, doc.ID)
	assert.Empty(t, st.objects)
}

func TestDelete_KeepsRecordWhenBlobDeleteFails(t *testing.T) {
	svc, db, st, _ := newTestService()
	ctx := context.Background()

	doc, err := svc.RegisterExisting(ctx, "a.pdf", "math", "k/a")
	require.NoError(t, err)
	st.deleteErr = errors.New("s3 down")

	assert.Error(t, svc.Delete(ctx, doc.ID))
	assert.Contains(t, db.docs, doc.ID)
}

func TestReprocess_EnqueuesForcedRun(t *testing.T) {
	svc, db, _, q := newTestService()
	ctx := context.Background()

	doc, err := svc.RegisterExisting(ctx, "a.pdf", "math", "k/a")
	require.NoError(t, err)
	db.docs[doc.ID].Status = models.StatusCompleted

	require.NoError(t, svc.Reprocess(ctx, doc.ID))
	require.Len(t, q.reqs, 1)
	assert.Equal(t, ingestion_engine.VectorizeRequest{DocumentID: doc.ID, StoragePath: "k/a", Force: true}, q.reqs[0])

	db.docs[doc.ID].Status = models.StatusProcessing
	assert.ErrorIs(t, svc.Reprocess(ctx, doc.ID), core.ErrAlreadyProcessing)

	q.err = core.ErrQueueFull
	db.docs[doc.ID].Status = models.StatusFailed
	assert.ErrorIs(t, svc.Reprocess(ctx, doc.ID), core.ErrQueueFull)
}

func TestReprocess_StaleProcessingIsRequeued(t *testing.T) {
	svc, db, _, q := newTestService()
	ctx := context.Background()

	doc, err := svc.RegisterExisting(ctx, "a.pdf", "math", "k/a")
	require.NoError(t, err)
	db.docs[doc.ID].Status = models.StatusProcessing
	db.docs[doc.ID].UpdatedAt = svc.now().Add(-time.Hour - time.Second)

	require.NoError(t, svc.Reprocess(ctx, doc.ID))
	require.Len(t, q.reqs, 1)
	assert.True(t, q.reqs[0].Force)
}

func TestReprocess_FullQueueFailsFast(t *testing.T) {
	svc, _, _, q := newTestService()
	svc.enqueueWait = 20 * time.Millisecond
	q.full = true
	ctx := context.Background()

	doc, err := svc.RegisterExisting(ctx, "a.pdf", "math", "k/a")
	require.NoError(t, err)

	start := time.Now()
	err = svc.Reprocess(ctx, doc.ID)
	assert.ErrorIs(t, err, core.ErrQueueFull)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"notes.pdf":            "notes.pdf",
		"My Notes (v2).pdf":    "My_Notes__v2_.pdf",
		"../../etc/passwd":     "passwd",
		`C:\Users\x\file.docx`: "file.docx",
		"  ":                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeFileName(in), in)
	}
}
