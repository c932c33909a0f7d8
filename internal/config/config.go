// Package config provides environment configuration for the API server.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string        `env:"PORT" envDefault:"8080"`
	ServerReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	ServerWriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"120s"`

	// JWT settings
	JWTSecret string `env:"JWT_SECRET" envDefault:"development-secret-change-in-production"`

	// Rate limiting
	RateLimitRequests       int           `env:"RATE_LIMIT_REQUESTS" envDefault:"60"`
	RateLimitWindow         time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	PublicRateLimitRequests int           `env:"PUBLIC_RATE_LIMIT_REQUESTS" envDefault:"20"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// LLM settings
	AnthropicAPIKey  string        `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	DefaultLLM       string        `env:"DEFAULT_LLM" envDefault:"anthropic"`
	CompletionModel  string        `env:"COMPLETION_MODEL"`
	ExtractionModel  string        `env:"EXTRACTION_MODEL"`
	MaxTokens        int           `env:"COMPLETION_MAX_TOKENS" envDefault:"1024"`
	Temperature      float64       `env:"COMPLETION_TEMPERATURE" envDefault:"0.3"`
	PromptTokenLimit int           `env:"PROMPT_TOKEN_LIMIT" envDefault:"6000"`
	RecentTurns      int           `env:"PROMPT_RECENT_TURNS" envDefault:"8"`
	ProviderRetries  uint64        `env:"PROVIDER_MAX_RETRIES" envDefault:"3"`
	TurnTimeout      time.Duration `env:"TURN_TIMEOUT" envDefault:"60s"`

	// Embedding settings
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-large"`
	TierFastDims   int    `env:"EMBEDDING_DIMS_FAST" envDefault:"256"`
	TierMidDims    int    `env:"EMBEDDING_DIMS_BALANCED" envDefault:"1024"`
	TierFullDims   int    `env:"EMBEDDING_DIMS_FULL" envDefault:"3072"`

	// Retrieval settings
	SimilarityThreshold float32       `env:"RETRIEVAL_THRESHOLD" envDefault:"0.3"`
	CollectionLimit     int           `env:"RETRIEVAL_COLLECTION_LIMIT" envDefault:"5"`
	MaxContextDocs      int           `env:"RETRIEVAL_MAX_DOCS" envDefault:"8"`
	MaxContextChars     int           `env:"RETRIEVAL_MAX_CHARS" envDefault:"12000"`
	CollectionTimeout   time.Duration `env:"RETRIEVAL_COLLECTION_TIMEOUT" envDefault:"3s"`
	EscalateOnEmpty     bool          `env:"RETRIEVAL_ESCALATE_ON_EMPTY" envDefault:"true"`
	RecallLimit         int           `env:"MEMORY_RECALL_LIMIT" envDefault:"3"`
	RecallThreshold     float32       `env:"MEMORY_RECALL_THRESHOLD" envDefault:"0.5"`
	RecallStaffWide     bool          `env:"MEMORY_STAFF_TENANT_WIDE" envDefault:"true"`

	// Vector store settings
	VectorStore      string `env:"VECTOR_STORE" envDefault:"memory"`
	VectorStorePath  string `env:"VECTOR_STORE_PATH"`
	QdrantURL        string `env:"QDRANT_URL"`
	QdrantAPIKey     string `env:"QDRANT_API_KEY"`
	QdrantCollPrefix string `env:"QDRANT_COLLECTION_PREFIX"`

	// Cache settings
	CacheBackend string        `env:"CACHE_BACKEND" envDefault:"memory"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"1h"`

	// Session settings
	SessionBackend       string        `env:"SESSION_BACKEND" envDefault:"memory"`
	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`
	SessionRetainedTurns int           `env:"SESSION_RETAINED_TURNS" envDefault:"50"`

	// Redis settings (cache, sessions, guard)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// NATS turn log settings
	TurnLogEnabled bool          `env:"TURN_LOG_ENABLED" envDefault:"false"`
	TurnLogMaxAge  time.Duration `env:"TURN_LOG_MAX_AGE" envDefault:"720h"`
	NATSURL        string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSCAFile     string        `env:"NATS_CA_FILE"`
	NATSCertFile   string        `env:"NATS_CERT_FILE"`
	NATSKeyFile    string        `env:"NATS_KEY_FILE"`
	NATSToken      string        `env:"NATS_TOKEN"`

	// Collection catalog settings
	SupabaseURL     string        `env:"SUPABASE_URL"`
	SupabaseKey     string        `env:"SUPABASE_KEY"`
	CatalogCacheTTL time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Tracing
	TracingEndpoint string `env:"TRACING_ENDPOINT" envDefault:"localhost:4318"`
	TracingEnabled  bool   `env:"TRACING_ENABLED" envDefault:"false"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// UseRedis reports whether any component is configured to use Redis.
func (c *Config) UseRedis() bool {
	return c.CacheBackend == "redis" || c.SessionBackend == "redis"
}
