package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider adapter kinds.
const (
	KindHuggingFace = "huggingface"
	KindCohere      = "cohere"
	KindOpenAI      = "openai" // any OpenAI-compatible embeddings API, e.g. Voyage
	KindGemini      = "gemini"
)

// ProviderConfig is one entry of the ordered embedding provider chain.
type ProviderConfig struct {
	Name              string  `yaml:"name"`
	Kind              string  `yaml:"kind"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	BatchSize         int     `yaml:"batch_size"`
	MaxAttempts       int     `yaml:"max_attempts"`
	BackoffMS         int     `yaml:"backoff_ms"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	TimeoutSec        int     `yaml:"timeout_sec"`
}

type providersFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// Backoff returns the base retry delay.
func (p ProviderConfig) Backoff() time.Duration {
	return time.Duration(p.BackoffMS) * time.Millisecond
}

// Timeout returns the per-request timeout, zero meaning the pipeline default.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

// ApplyDefaults fills empty fields with per-kind defaults.
func (p *ProviderConfig) ApplyDefaults() {
	if p.Kind == "" {
		p.Kind = kindForName(p.Name)
	}
	switch p.Kind {
	case KindHuggingFace:
		setDefault(&p.BaseURL, "https://api-inference.huggingface.co/pipeline/feature-extraction")
		setDefault(&p.Model, "sentence-transformers/all-MiniLM-L6-v2")
		setDefaultInt(&p.BatchSize, 20)
	case KindCohere:
		setDefault(&p.BaseURL, "https://api.cohere.ai/compatibility/v1")
		setDefault(&p.Model, "embed-english-light-v3.0")
		setDefaultInt(&p.BatchSize, 96)
	case KindOpenAI:
		if p.Name == "voyage" {
			setDefault(&p.BaseURL, "https://api.voyageai.com/v1")
			setDefault(&p.Model, "voyage-2")
		}
		setDefaultInt(&p.BatchSize, 128)
	case KindGemini:
		setDefault(&p.Model, "text-embedding-004")
		setDefaultInt(&p.BatchSize, 100)
	}
	setDefaultInt(&p.MaxAttempts, 3)
	setDefaultInt(&p.BackoffMS, 2000)
}

// Validate checks a single provider entry.
func (p ProviderConfig) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	switch p.Kind {
	case KindHuggingFace, KindCohere, KindGemini:
	case KindOpenAI:
		if p.BaseURL == "" {
			return fmt.Errorf("provider %s: base_url is required for kind openai", p.Name)
		}
		if p.Model == "" {
			return fmt.Errorf("provider %s: model is required for kind openai", p.Name)
		}
	default:
		return fmt.Errorf("provider %s: unknown kind %q", p.Name, p.Kind)
	}
	if p.BatchSize <= 0 {
		return fmt.Errorf("provider %s: batch_size must be positive", p.Name)
	}
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("provider %s: max_attempts must be positive", p.Name)
	}
	if p.RequestsPerSecond < 0 {
		return fmt.Errorf("provider %s: requests_per_second must not be negative", p.Name)
	}
	return nil
}

// LoadProviders reads the ordered provider chain from a YAML file.
func LoadProviders(path string) ([]ProviderConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file %s: %w", path, err)
	}
	return ParseProviders(data)
}

// ParseProviders parses a provider chain document, substituting ${VAR} references first.
func ParseProviders(data []byte) ([]ProviderConfig, error) {
	data = expandEnvVars(data)

	var f providersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}
	seen := make(map[string]bool, len(f.Providers))
	for i := range f.Providers {
		p := &f.Providers[i]
		p.ApplyDefaults()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("provider %s listed twice", p.Name)
		}
		seen[p.Name] = true
	}
	return f.Providers, nil
}

func kindForName(name string) string {
	switch name {
	case "voyage":
		return KindOpenAI
	default:
		return name
	}
}

func setDefault(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func setDefaultInt(dst *int, v int) {
	if *dst <= 0 {
		*dst = v
	}
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
