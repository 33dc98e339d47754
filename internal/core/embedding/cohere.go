package embedding

import (
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// NewCohereEmbedder targets Cohere's OpenAI compatibility API (https://api.cohere.ai/compatibility/v1).
// Cohere rejects the base64 default some clients send, so float encoding is requested explicitly.
func NewCohereEmbedder(client *http.Client, baseURL, model, apiKey string) *OpenAIEmbedder {
	return newOpenAICompatible(client, baseURL, model, apiKey, "cohere", openai.EmbeddingEncodingFormatFloat)
}
