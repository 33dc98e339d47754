package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/markdave123-py/learnbridge/internal/core"
	"github.com/markdave123-py/learnbridge/internal/core/ingestion_engine"
	"github.com/markdave123-py/learnbridge/internal/logger"
)

type VectorizeHandler struct {
	vectorizer ingestion_engine.Vectorizer
}

func NewVectorizeHandler(v ingestion_engine.Vectorizer) *VectorizeHandler {
	return &VectorizeHandler{vectorizer: v}
}

type vectorizeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Vectorize runs the pipeline synchronously for one document.
func (h *VectorizeHandler) Vectorize(w http.ResponseWriter, r *http.Request) {
	var req ingestion_engine.VectorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err))
		return
	}

	res, err := h.vectorizer.Vectorize(r.Context(), req)
	if err != nil {
		logger.FromContext(r.Context(), nil).Warn("vectorize request failed",
			zap.String("document_id", req.DocumentID), zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, vectorizeResponse{Success: true, Message: res.Message})
}
