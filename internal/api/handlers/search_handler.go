package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/markdave123-py/learnbridge/internal/core"
	"github.com/markdave123-py/learnbridge/internal/models"
)

const maxSearchLimit = 50

// VectorSearcher finds stored chunks near a query vector.
type VectorSearcher interface {
	SearchVectors(ctx context.Context, queryVec []float32, provider, subjectTag string, limit int) ([]models.VectorMatch, error)
}

// SearchHandler embeds a query with the provider chain and returns the closest curriculum chunks.
// Only vectors written by the provider that embedded the query, at the same dimension, can match.
type SearchHandler struct {
	store    VectorSearcher
	embedder core.Embedder
}

func NewSearchHandler(store VectorSearcher, embedder core.Embedder) *SearchHandler {
	return &SearchHandler{store: store, embedder: embedder}
}

type searchRequest struct {
	Query      string `json:"query"`
	SubjectTag string `json:"subjectTag"`
	Limit      int    `json:"limit"`
}

type searchHit struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"documentId"`
	ChunkIndex int     `json:"chunkIndex"`
	Content    string  `json:"content"`
	Provider   string  `json:"provider"`
	Distance   float64 `json:"distance"`
}

type searchResponse struct {
	Provider string      `json:"provider"`
	Results  []searchHit `json:"results"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err))
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, fmt.Errorf("%w: query is required", core.ErrInvalidRequest))
		return
	}
	if req.Limit <= 0 || req.Limit > maxSearchLimit {
		req.Limit = 5
	}

	emb, err := h.embedder.Embed(r.Context(), []string{req.Query})
	if err != nil {
		writeError(w, err)
		return
	}

	matches, err := h.store.SearchVectors(r.Context(), emb.Vectors[0], emb.Provider, req.SubjectTag, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := searchResponse{Provider: emb.Provider, Results: make([]searchHit, 0, len(matches))}
	for _, m := range matches {
		resp.Results = append(resp.Results, searchHit{
			ID:         m.ID,
			DocumentID: m.DocumentID,
			ChunkIndex: m.ChunkIndex,
			Content:    m.Content,
			Provider:   m.Provider,
			Distance:   m.Distance,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
