package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/markdave123-py/learnbridge/internal/config"
	"github.com/markdave123-py/learnbridge/internal/core"
	"github.com/markdave123-py/learnbridge/internal/models"
)

// pgxConn is the subset of *pgxpool.Pool the client uses; pgxmock's pool satisfies it too.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

type DatabaseClient struct {
	db pgxConn
}

var _ core.DbClient = (*DatabaseClient)(nil)

// NewDatabaseClient opens a pgx pool, registers the pgvector types on every connection and bootstraps the schema.
func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 10 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: pool}, nil
}

// NewDatabaseClientWithConn wraps an existing connection; the schema is assumed to exist.
func NewDatabaseClientWithConn(conn pgxConn) *DatabaseClient {
	return &DatabaseClient{db: conn}
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		c.db.Close()
	}
	return nil
}

const documentColumns = `id, file_name, subject_tag, storage_path, content_type, processing_status,
	error_message, chunk_count, embedding_provider, uploaded_at, updated_at`

func scanDocument(row pgx.Row) (*models.CurriculumDocument, error) {
	var (
		d      models.CurriculumDocument
		status string
	)
	err := row.Scan(
		&d.ID, &d.FileName, &d.SubjectTag, &d.StoragePath, &d.ContentType, &status,
		&d.ErrorMessage, &d.ChunkCount, &d.EmbeddingProvider, &d.UploadedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = models.ProcessingStatus(status)
	return &d, nil
}

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.CurriculumDocument) error {
	if doc == nil {
		return errors.New("nil document")
	}
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}
	const q = `
		INSERT INTO curriculum_documents
			(id, file_name, subject_tag, storage_path, content_type, processing_status, uploaded_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, COALESCE($7, now()), COALESCE($8, now()))
	`
	_, err := c.db.Exec(ctx, q,
		doc.ID, doc.FileName, doc.SubjectTag, doc.StoragePath, doc.ContentType, string(doc.Status),
		nullTime(doc.UploadedAt), nullTime(doc.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.CurriculumDocument, error) {
	q := `SELECT ` + documentColumns + ` FROM curriculum_documents WHERE id = $1`
	d, err := scanDocument(c.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDocuments returns documents newest first; an empty subjectTag lists all of them.
func (c *DatabaseClient) ListDocuments(ctx context.Context, subjectTag string) ([]models.CurriculumDocument, error) {
	q := `SELECT ` + documentColumns + ` FROM curriculum_documents
		WHERE ($1 = '' OR subject_tag = $1)
		ORDER BY uploaded_at DESC`
	rows, err := c.db.Query(ctx, q, subjectTag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CurriculumDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// DeleteDocument removes the document row; its vectors go with it through ON DELETE CASCADE.
func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	tag, err := c.db.Exec(ctx, `DELETE FROM curriculum_documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	return nil
}

// ClaimDocument is a compare-and-swap on processing_status. A row stuck in processing whose
// updated_at is older than staleAfter is also taken over.
func (c *DatabaseClient) ClaimDocument(ctx context.Context, id string, allowed []models.ProcessingStatus, staleAfter time.Duration) (bool, error) {
	statuses := make([]string, len(allowed))
	for i, s := range allowed {
		statuses[i] = string(s)
	}
	const q = `
		UPDATE curriculum_documents
		SET processing_status = 'processing', error_message = NULL, updated_at = now()
		WHERE id = $1 AND (
			processing_status = ANY($2)
			OR ($3::float8 > 0 AND processing_status = 'processing'
				AND updated_at < now() - make_interval(secs => $3::float8))
		)
	`
	tag, err := c.db.Exec(ctx, q, id, statuses, staleAfter.Seconds())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (c *DatabaseClient) MarkDocumentCompleted(ctx context.Context, id string, chunkCount int, provider string) error {
	const q = `
		UPDATE curriculum_documents
		SET processing_status = 'completed', error_message = NULL, chunk_count = $2,
			embedding_provider = $3, updated_at = now()
		WHERE id = $1 AND processing_status = 'processing'
	`
	tag, err := c.db.Exec(ctx, q, id, chunkCount, provider)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s is no longer processing", id)
	}
	return nil
}

func (c *DatabaseClient) MarkDocumentFailed(ctx context.Context, id string, message string) error {
	const q = `
		UPDATE curriculum_documents
		SET processing_status = 'failed', error_message = $2, chunk_count = 0, updated_at = now()
		WHERE id = $1 AND processing_status = 'processing'
	`
	tag, err := c.db.Exec(ctx, q, id, message)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s is no longer processing", id)
	}
	return nil
}

// ReplaceDocumentVectors deletes prior vectors and inserts records in a single transaction.
func (c *DatabaseClient) ReplaceDocumentVectors(ctx context.Context, documentID string, records []models.VectorRecord) error {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM curriculum_vectors WHERE document_id = $1`, documentID); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("delete prior vectors: %w", err)
	}

	const q = `
		INSERT INTO curriculum_vectors
			(id, document_id, chunk_index, content, embedding, dimension, provider)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range records {
		r := &records[i]
		if r.DocumentID != documentID {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("vector %s belongs to document %s, not %s", r.ID, r.DocumentID, documentID)
		}
		vec := pgvector.NewVector(r.Embedding)
		if _, err := tx.Exec(ctx, q,
			r.ID, r.DocumentID, r.ChunkIndex, r.Content, vec, r.Dimension, r.Provider,
		); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("insert vector %s: %w", r.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (c *DatabaseClient) DeleteDocumentVectors(ctx context.Context, documentID string) error {
	_, err := c.db.Exec(ctx, `DELETE FROM curriculum_vectors WHERE document_id = $1`, documentID)
	return err
}

func (c *DatabaseClient) CountDocumentVectors(ctx context.Context, documentID string) (int, error) {
	var n int
	err := c.db.QueryRow(ctx, `SELECT count(*) FROM curriculum_vectors WHERE document_id = $1`, documentID).Scan(&n)
	return n, err
}

// SearchVectors finds the closest chunks by cosine distance among vectors of the same provider and dimension.
// Vectors from different providers live in unrelated spaces even when their widths agree.
func (c *DatabaseClient) SearchVectors(ctx context.Context, queryVec []float32, provider, subjectTag string, limit int) ([]models.VectorMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	const q = `
		SELECT v.id, v.document_id, v.chunk_index, v.content, v.dimension, v.provider,
			v.created_at, v.embedding <=> $1 AS distance
		FROM curriculum_vectors v
		JOIN curriculum_documents d ON d.id = v.document_id
		WHERE v.dimension = $2
			AND v.provider = $3
			AND d.processing_status = 'completed'
			AND ($4 = '' OR d.subject_tag = $4)
		ORDER BY distance
		LIMIT $5
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.Query(ctx, q, vec, len(queryVec), provider, subjectTag, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.VectorMatch
	for rows.Next() {
		var m models.VectorMatch
		if err := rows.Scan(
			&m.ID, &m.DocumentID, &m.ChunkIndex, &m.Content, &m.Dimension, &m.Provider,
			&m.CreatedAt, &m.Distance,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
