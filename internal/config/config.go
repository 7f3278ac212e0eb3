package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	VectorBackendPgvector = "pgvector"
	VectorBackendQdrant   = "qdrant"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	MaxRequestBytes int64 `envconfig:"MAX_REQUEST_BYTES" default:"1048576"`
	MaxUploadBytes  int64 `envconfig:"MAX_UPLOAD_BYTES" default:"33554432"`

	DatabaseURL      string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"mmrag-content"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	VectorBackend    string `envconfig:"VECTOR_BACKEND" default:"pgvector"`
	QdrantHost       string `envconfig:"QDRANT_HOST"`
	QdrantPort       int    `envconfig:"QDRANT_PORT" default:"6334"`
	QdrantAPIKey     string `envconfig:"QDRANT_API_KEY"`
	QdrantUseTLS     bool   `envconfig:"QDRANT_USE_TLS" default:"false"`
	QdrantCollection string `envconfig:"QDRANT_COLLECTION" default:"mmrag_summaries"`

	GenerationRPS   float64 `envconfig:"GENERATION_RPS" default:"5"`
	GenerationBurst int     `envconfig:"GENERATION_BURST" default:"5"`

	SummaryConcurrency int `envconfig:"SUMMARY_CONCURRENCY" default:"3"`
	SummaryMaxTokens   int `envconfig:"SUMMARY_MAX_TOKENS" default:"6000"`

	ContextCharBudget int `envconfig:"CONTEXT_CHAR_BUDGET" default:"25000"`
	HistoryTurns      int `envconfig:"HISTORY_TURNS" default:"6"`
	MaxImages         int `envconfig:"MAX_IMAGES" default:"2"`
	TopK              int `envconfig:"TOP_K" default:"12"`
	ImageTopK         int `envconfig:"IMAGE_TOP_K" default:"2"`
	EnumerationLimit  int `envconfig:"ENUMERATION_LIMIT" default:"200"`

	ClassifierVocabularyFile string `envconfig:"CLASSIFIER_VOCABULARY_FILE"`

	RepairPollInterval time.Duration `envconfig:"REPAIR_POLL_INTERVAL" default:"10s"`

	SentryDSN string `envconfig:"SENTRY_DSN"`

	// Bootstrap: create an admin user and API key on startup
	InitUserEmail string `envconfig:"INIT_USER_EMAIL"`
	InitAPIKey    string `envconfig:"INIT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MMRAG", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.VectorBackend {
	case VectorBackendPgvector:
	case VectorBackendQdrant:
		if !c.HasQdrant() {
			return fmt.Errorf("VECTOR_BACKEND=qdrant requires QDRANT_HOST")
		}
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.VectorBackend)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive")
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasQdrant() bool {
	return c.QdrantHost != ""
}
