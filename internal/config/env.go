package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	LogLevel string
	Port     string

	DatabaseURL string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	S3Endpoint   string // optional, e.g. MinIO
	SignedURLTTL time.Duration

	Extractor   string // pdfco | docconv
	PDFCoAPIKey string
	PDFCoURL    string

	ChunkMaxChars int
	RunTimeout    time.Duration
	CallTimeout   time.Duration
	Workers       int
	QueueSize     int

	JWTSecret   string
	CORSOrigins []string

	EmbedProviders []string // priority order
	ProvidersFile  string
	Providers      []ProviderConfig

	HuggingFaceToken string
	CohereAPIKey     string
	VoyageAPIKey     string
	GeminiAPIKey     string
	EmbedModel       string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "local"),
		LogLevel: getEnv("LOG_LEVEL", ""),
		Port:     getEnv("PORT", "8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "curriculum-private"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		SignedURLTTL: getEnvSeconds("SIGNED_URL_TTL_SEC", 60),

		Extractor:   getEnv("EXTRACTOR", "pdfco"),
		PDFCoAPIKey: getEnv("PDFCO_API_KEY", ""),
		PDFCoURL:    getEnv("PDFCO_URL", "https://api.pdf.co/v1/pdf/convert/to/text-simple"),

		ChunkMaxChars: getEnvInt("CHUNK_MAX_CHARS", 1000),
		RunTimeout:    getEnvSeconds("RUN_TIMEOUT_SEC", 300),
		CallTimeout:   getEnvSeconds("CALL_TIMEOUT_SEC", 60),
		Workers:       getEnvInt("WORKERS", 2),
		QueueSize:     getEnvInt("QUEUE_SIZE", 64),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		EmbedProviders: splitList(getEnv("EMBED_PROVIDERS", "huggingface,cohere,voyage,gemini")),
		ProvidersFile:  getEnv("PROVIDERS_FILE", ""),

		HuggingFaceToken: getEnv("HUGGINGFACE_TOKEN", ""),
		CohereAPIKey:     getEnv("COHERE_API_KEY", ""),
		VoyageAPIKey:     getEnv("VOYAGE_API_KEY", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		EmbedModel:       getEnv("EMBED_MODEL", "text-embedding-004"),
	}

	return cfg
}

// ResolveProviders fills cfg.Providers from PROVIDERS_FILE when set, otherwise from EMBED_PROVIDERS.
// Providers without credentials are dropped and reported in skipped.
func (c *Config) ResolveProviders() (skipped []string, err error) {
	var all []ProviderConfig
	if c.ProvidersFile != "" {
		all, err = LoadProviders(c.ProvidersFile)
		if err != nil {
			return nil, err
		}
	} else {
		all, err = c.providersFromEnv()
		if err != nil {
			return nil, err
		}
	}

	c.Providers = c.Providers[:0]
	for _, p := range all {
		if p.APIKey == "" {
			skipped = append(skipped, p.Name)
			continue
		}
		c.Providers = append(c.Providers, p)
	}
	return skipped, nil
}

func (c *Config) providersFromEnv() ([]ProviderConfig, error) {
	out := make([]ProviderConfig, 0, len(c.EmbedProviders))
	for _, name := range c.EmbedProviders {
		var key, model string
		switch name {
		case KindHuggingFace:
			key = c.HuggingFaceToken
		case KindCohere:
			key = c.CohereAPIKey
		case "voyage":
			key = c.VoyageAPIKey
		case KindGemini:
			key, model = c.GeminiAPIKey, c.EmbedModel
		default:
			return nil, fmt.Errorf("EMBED_PROVIDERS: unknown provider %q", name)
		}
		p := ProviderConfig{Name: name, Kind: kindForName(name), APIKey: key, Model: model}
		p.ApplyDefaults()
		out = append(out, p)
	}
	return out, nil
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}
	if c.BucketName == "" {
		return fmt.Errorf("BUCKET_NAME not set")
	}
	switch c.Extractor {
	case "pdfco":
		if c.PDFCoAPIKey == "" {
			return fmt.Errorf("PDFCO_API_KEY not set")
		}
	case "docconv":
	default:
		return fmt.Errorf("EXTRACTOR must be pdfco or docconv, got %q", c.Extractor)
	}
	if c.SignedURLTTL <= 0 || c.RunTimeout <= 0 || c.CallTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.ChunkMaxChars <= 0 {
		return fmt.Errorf("CHUNK_MAX_CHARS must be positive, got %d", c.ChunkMaxChars)
	}
	if c.Workers <= 0 || c.QueueSize <= 0 {
		return fmt.Errorf("WORKERS and QUEUE_SIZE must be positive")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("no embedding provider configured with credentials")
	}
	for _, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvSeconds(key string, def int) time.Duration {
	return time.Duration(getEnvInt(key, def)) * time.Second
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
