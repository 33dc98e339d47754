package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviders_OrderAndDefaults(t *testing.T) {
	t.Setenv("TEST_COHERE_KEY", "co-key")

	doc := []byte(`
providers:
  - name: cohere
    api_key: ${TEST_COHERE_KEY}
  - name: voyage
    api_key: ${TEST_VOYAGE_KEY:-fallback}
    batch_size: 8
  - name: local
    kind: openai
    base_url: http://localhost:11434/v1
    model: nomic-embed-text
    api_key: x
    requests_per_second: 2.5
`)
	providers, err := ParseProviders(doc)
	require.NoError(t, err)
	require.Len(t, providers, 3)

	assert.Equal(t, "cohere", providers[0].Name)
	assert.Equal(t, KindCohere, providers[0].Kind)
	assert.Equal(t, "co-key", providers[0].APIKey)
	assert.Equal(t, 96, providers[0].BatchSize)
	assert.Equal(t, 3, providers[0].MaxAttempts)
	assert.Equal(t, 2000, providers[0].BackoffMS)

	assert.Equal(t, KindOpenAI, providers[1].Kind)
	assert.Equal(t, "fallback", providers[1].APIKey)
	assert.Equal(t, "https://api.voyageai.com/v1", providers[1].BaseURL)
	assert.Equal(t, 8, providers[1].BatchSize)

	assert.Equal(t, "nomic-embed-text", providers[2].Model)
	assert.InDelta(t, 2.5, providers[2].RequestsPerSecond, 1e-9)
}

func TestParseProviders_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown kind":      "providers:\n  - name: mystery\n",
		"duplicate":         "providers:\n  - name: cohere\n  - name: cohere\n",
		"openai no baseurl": "providers:\n  - name: custom\n    kind: openai\n    model: m\n",
		"negative rate":     "providers:\n  - name: cohere\n    requests_per_second: -1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProviders([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadProviders_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - name: huggingface\n    api_key: hf\n"), 0o600))

	providers, err := LoadProviders(path)
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, 20, providers[0].BatchSize)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", providers[0].Model)
}

func TestResolveProviders_SkipsMissingKeys(t *testing.T) {
	cfg := &Config{
		EmbedProviders: []string{"huggingface", "cohere", "voyage"},
		CohereAPIKey:   "co",
	}
	skipped, err := cfg.ResolveProviders()
	require.NoError(t, err)
	assert.Equal(t, []string{"huggingface", "voyage"}, skipped)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "cohere", cfg.Providers[0].Name)
	assert.Equal(t, "https://api.cohere.ai/compatibility/v1", cfg.Providers[0].BaseURL)
}

func TestResolveProviders_UnknownName(t *testing.T) {
	cfg := &Config{EmbedProviders: []string{"pinecone"}}
	_, err := cfg.ResolveProviders()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseURL:   "postgres://localhost/db",
			BucketName:    "b",
			Extractor:     "docconv",
			SignedURLTTL:  60,
			RunTimeout:    60,
			CallTimeout:   60,
			ChunkMaxChars: 1000,
			Workers:       1,
			QueueSize:     1,
			Providers:     []ProviderConfig{{Name: "cohere", Kind: KindCohere, BatchSize: 1, MaxAttempts: 1}},
		}
	}
	require.NoError(t, valid().Validate())

	c := valid()
	c.DatabaseURL = ""
	assert.Error(t, c.Validate())

	c = valid()
	c.Extractor = "pdfco"
	assert.Error(t, c.Validate(), "pdfco needs an API key")

	c = valid()
	c.Providers = nil
	assert.Error(t, c.Validate())
}
