package embedding

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/markdave123-py/learnbridge/internal/core"
)

// OpenAIEmbedder talks to any OpenAI-compatible /embeddings endpoint.
// Voyage and Cohere (through its compatibility API) are wired through it.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	label  string
	format openai.EmbeddingEncodingFormat
}

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(client *http.Client, baseURL, model, apiKey string) *OpenAIEmbedder {
	return newOpenAICompatible(client, baseURL, model, apiKey, "openai-compatible", "")
}

func newOpenAICompatible(client *http.Client, baseURL, model, apiKey, label string, format openai.EmbeddingEncodingFormat) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	if client != nil {
		cfg.HTTPClient = client
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.EmbeddingModel(model),
		label:  label,
		format: format,
	}
}

func (o *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          texts,
		Model:          o.model,
		EncodingFormat: o.format,
	})
	if err != nil {
		return nil, fmt.Errorf("%s embed: %w", o.label, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%s embed: malformed response body: %d embeddings for %d inputs", o.label, len(resp.Data), len(texts))
	}

	// Index is authoritative; providers are not required to return data in input order.
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, 0, len(data))
	for _, d := range data {
		out = append(out, d.Embedding)
	}
	return out, nil
}
