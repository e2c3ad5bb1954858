// Package config defines the configuration structures for LegalLens. No I/O or
// parsing logic lives in this file, only data types and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
)

// Version is injected at build time.
var Version = "dev"

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`

	// PipelineRateLimit is requests per second per client on the case and
	// advisory endpoints. Negative disables the limit.
	PipelineRateLimit float64 `mapstructure:"pipeline_rate_limit"`
	PipelineBurst     int     `mapstructure:"pipeline_burst"`
}

// IntelligenceConfig selects and tunes the analysis collaborators.
type IntelligenceConfig struct {
	// Encoder is "hashing" (offline, deterministic) or "gemini".
	Encoder              string        `mapstructure:"encoder"`
	HashDimensions       int           `mapstructure:"hash_dimensions"`
	UseEmbeddings        bool          `mapstructure:"use_embeddings"`
	GeminiAPIKey         string        `mapstructure:"gemini_api_key"`
	GeminiModel          string        `mapstructure:"gemini_model"`
	GeminiEmbeddingModel string        `mapstructure:"gemini_embedding_model"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	// NERBackendURL points at a token-classification model server. Empty
	// means the rule-based recognizer is used.
	NERBackendURL string `mapstructure:"ner_backend_url"`
	NERModelID    string `mapstructure:"ner_model_id"`
	// SectionsPath overrides the embedded statutory table.
	SectionsPath string `mapstructure:"sections_path"`
	// KnowledgeDir is loaded into the retriever at startup when set.
	KnowledgeDir string `mapstructure:"knowledge_dir"`
}

// RetrievalConfig holds knowledge-retriever parameters.
type RetrievalConfig struct {
	Backend   string `mapstructure:"backend"` // "memory" | "milvus"
	ChunkSize int    `mapstructure:"chunk_size"`
	TopK      int    `mapstructure:"top_k"`
}

// MilvusConfig holds Milvus vector-store connection parameters.
type MilvusConfig struct {
	Addr             string        `mapstructure:"addr"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"db_name"`
	CollectionPrefix string        `mapstructure:"collection_prefix"`
	NList            int           `mapstructure:"nlist"`
	NProbe           int           `mapstructure:"nprobe"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig holds Redis connection parameters for the embedding cache.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// PostgresConfig holds the knowledge-source registry connection parameters.
type PostgresConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// MinIOConfig holds object-storage parameters for report publishing.
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// KafkaConfig holds producer/consumer parameters.
type KafkaConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	EventsTopic     string   `mapstructure:"events_topic"`
	IngestTopic     string   `mapstructure:"ingest_topic"`
	DeadLetterTopic string   `mapstructure:"dead_letter_topic"`
	MaxRetries      int      `mapstructure:"max_retries"`
}

// ReportsConfig controls report rendering.
type ReportsConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	RenderPDF bool   `mapstructure:"render_pdf"`
}

// MetricsConfig controls the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          logging.LogConfig  `mapstructure:"log"`
	Intelligence IntelligenceConfig `mapstructure:"intelligence"`
	Retrieval    RetrievalConfig    `mapstructure:"retrieval"`
	Milvus       MilvusConfig       `mapstructure:"milvus"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Postgres     PostgresConfig     `mapstructure:"postgres"`
	MinIO        MinIOConfig        `mapstructure:"minio"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Reports      ReportsConfig      `mapstructure:"reports"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a fully-populated Config and returns
// the first problem found. Backend sections are only checked when enabled.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	switch c.Intelligence.Encoder {
	case "hashing":
		if c.Intelligence.HashDimensions < 8 {
			return fmt.Errorf("config: intelligence.hash_dimensions must be >= 8, got %d", c.Intelligence.HashDimensions)
		}
	case "gemini":
		if c.Intelligence.GeminiAPIKey == "" {
			return fmt.Errorf("config: intelligence.gemini_api_key is required for the gemini encoder")
		}
	default:
		return fmt.Errorf("config: intelligence.encoder %q is invalid; expected hashing|gemini", c.Intelligence.Encoder)
	}

	switch c.Retrieval.Backend {
	case "memory":
	case "milvus":
		if c.Milvus.Addr == "" {
			return fmt.Errorf("config: milvus.addr is required for the milvus retrieval backend")
		}
	default:
		return fmt.Errorf("config: retrieval.backend %q is invalid; expected memory|milvus", c.Retrieval.Backend)
	}
	if c.Retrieval.ChunkSize < 50 {
		return fmt.Errorf("config: retrieval.chunk_size must be >= 50, got %d", c.Retrieval.ChunkSize)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("config: retrieval.top_k must be >= 1, got %d", c.Retrieval.TopK)
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
		}
	}

	if c.Postgres.Enabled {
		if c.Postgres.Host == "" {
			return fmt.Errorf("config: postgres.host is required")
		}
		if c.Postgres.User == "" {
			return fmt.Errorf("config: postgres.user is required")
		}
		if c.Postgres.DBName == "" {
			return fmt.Errorf("config: postgres.db_name is required")
		}
		if c.Postgres.MaxConns < 1 {
			return fmt.Errorf("config: postgres.max_conns must be >= 1, got %d", c.Postgres.MaxConns)
		}
	}

	if c.MinIO.Enabled {
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("config: minio.endpoint is required")
		}
		if c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.bucket is required")
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.EventsTopic == "" || c.Kafka.IngestTopic == "" {
			return fmt.Errorf("config: kafka.events_topic and kafka.ingest_topic are required")
		}
	}

	if c.Reports.OutputDir == "" {
		return fmt.Errorf("config: reports.output_dir is required")
	}

	return nil
}

// ServerAddr returns the host:port the HTTP server listens on.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
