package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/markdave123-py/learnbridge/internal/core"
)

// HuggingFaceEmbedder calls the Inference API feature-extraction pipeline.
type HuggingFaceEmbedder struct {
	client *http.Client
	url    string
	token  string
}

var _ core.EmbeddingProvider = (*HuggingFaceEmbedder)(nil)

// NewHuggingFaceEmbedder builds the endpoint as baseURL/model.
func NewHuggingFaceEmbedder(client *http.Client, baseURL, model, token string) *HuggingFaceEmbedder {
	if client == nil {
		client = http.DefaultClient
	}
	return &HuggingFaceEmbedder{
		client: client,
		url:    strings.TrimRight(baseURL, "/") + "/" + model,
		token:  token,
	}
}

type hfRequest struct {
	Inputs  []string  `json:"inputs"`
	Options hfOptions `json:"options"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

func (h *HuggingFaceEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out [][]float32
	req := hfRequest{Inputs: texts, Options: hfOptions{WaitForModel: true}}
	if err := postJSON(ctx, h.client, h.url, bearer(h.token), req, &out); err != nil {
		return nil, fmt.Errorf("huggingface embed: %w", err)
	}
	return out, nil
}
