package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/markdave123-py/learnbridge/internal/core"
	"github.com/markdave123-py/learnbridge/internal/logger"
	"github.com/markdave123-py/learnbridge/internal/models"
)

const maxUploadBytes = 50 << 20

// DocumentAdmin is the curriculum registry the handler drives.
type DocumentAdmin interface {
	Register(ctx context.Context, fileName, subjectTag, contentType string, body io.Reader) (*models.CurriculumDocument, error)
	RegisterExisting(ctx context.Context, fileName, subjectTag, storagePath string) (*models.CurriculumDocument, error)
	List(ctx context.Context, subjectTag string) ([]models.CurriculumDocument, error)
	Get(ctx context.Context, id string) (*models.CurriculumDocument, error)
	Delete(ctx context.Context, id string) error
	Reprocess(ctx context.Context, id string) error
}

type DocumentHandler struct {
	docs DocumentAdmin
}

func NewDocumentHandler(docs DocumentAdmin) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

type registerRequest struct {
	FileName    string `json:"fileName"`
	SubjectTag  string `json:"subjectTag"`
	StoragePath string `json:"storagePath"`
}

// UploadDocument stores a multipart file and registers it as pending.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: file is required", core.ErrInvalidRequest))
		return
	}
	defer file.Close()

	doc, err := h.docs.Register(r.Context(), header.Filename, r.FormValue("subjectTag"), header.Header.Get("Content-Type"), file)
	if err != nil {
		logger.FromContext(r.Context(), nil).Error("upload failed", zap.String("file", header.Filename), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// RegisterDocument records a blob that already sits in the bucket.
func (h *DocumentHandler) RegisterDocument(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err))
		return
	}
	doc, err := h.docs.RegisterExisting(r.Context(), req.FileName, req.SubjectTag, req.StoragePath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context(), r.URL.Query().Get("subject"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.docs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReprocessDocument queues a forced run and returns immediately.
func (h *DocumentHandler) ReprocessDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.docs.Reprocess(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, vectorizeResponse{Success: true, Message: "Reprocessing queued."})
}
