package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default values
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 30 * time.Second
	DefaultServerWriteTimeout    = 120 * time.Second
	DefaultServerMaxBodySize     = 32 << 20
	DefaultServerShutdownTimeout = 30 * time.Second
	DefaultPipelineRateLimit     = 0.5
	DefaultPipelineBurst         = 5

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultEncoder              = "hashing"
	DefaultHashDimensions       = 384
	DefaultGeminiModel          = "gemini-1.5-flash"
	DefaultGeminiEmbeddingModel = "text-embedding-004"
	DefaultRequestTimeout       = 60 * time.Second
	DefaultNERModelID           = "legal-ner-bio-v1"

	DefaultRetrievalBackend = "memory"
	DefaultChunkSize        = 500
	DefaultTopK             = 5

	DefaultMilvusAddr             = "localhost:19530"
	DefaultMilvusCollectionPrefix = "legallens_"
	DefaultMilvusNList            = 128
	DefaultMilvusNProbe           = 16
	DefaultMilvusConnectTimeout   = 10 * time.Second

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 10
	DefaultRedisTTL       = 24 * time.Hour
	DefaultRedisKeyPrefix = "legallens:"

	DefaultPostgresHost          = "localhost"
	DefaultPostgresPort          = 5432
	DefaultPostgresDBName        = "legallens"
	DefaultPostgresSSLMode       = "disable"
	DefaultPostgresMaxConns      = 10
	DefaultPostgresMigrationPath = "file://migrations"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "legallens-reports"

	DefaultKafkaBroker          = "localhost:9092"
	DefaultKafkaGroupID         = "legallens-worker"
	DefaultKafkaEventsTopic     = "legallens.pipeline.completed"
	DefaultKafkaIngestTopic     = "legallens.knowledge.ingest"
	DefaultKafkaDeadLetterTopic = "legallens.knowledge.ingest.dlq"
	DefaultKafkaMaxRetries      = 3

	DefaultReportsDir = "documents"

	DefaultMetricsNamespace = "legallens"
)

// ─────────────────────────────────────────────────────────────────────────────
// ApplyDefaults
// ─────────────────────────────────────────────────────────────────────────────

// ApplyDefaults fills every zero-value field in cfg with its default. Fields the
// caller already set are left unchanged. It must run before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultServerMaxBodySize
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.PipelineRateLimit == 0 {
		cfg.Server.PipelineRateLimit = DefaultPipelineRateLimit
	}
	if cfg.Server.PipelineBurst == 0 {
		cfg.Server.PipelineBurst = DefaultPipelineBurst
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Intelligence ──────────────────────────────────────────────────────────
	if cfg.Intelligence.Encoder == "" {
		cfg.Intelligence.Encoder = DefaultEncoder
	}
	if cfg.Intelligence.HashDimensions == 0 {
		cfg.Intelligence.HashDimensions = DefaultHashDimensions
	}
	if cfg.Intelligence.GeminiModel == "" {
		cfg.Intelligence.GeminiModel = DefaultGeminiModel
	}
	if cfg.Intelligence.GeminiEmbeddingModel == "" {
		cfg.Intelligence.GeminiEmbeddingModel = DefaultGeminiEmbeddingModel
	}
	if cfg.Intelligence.RequestTimeout == 0 {
		cfg.Intelligence.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Intelligence.NERModelID == "" {
		cfg.Intelligence.NERModelID = DefaultNERModelID
	}

	// ── Retrieval ─────────────────────────────────────────────────────────────
	if cfg.Retrieval.Backend == "" {
		cfg.Retrieval.Backend = DefaultRetrievalBackend
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = DefaultChunkSize
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}

	// ── Milvus ────────────────────────────────────────────────────────────────
	if cfg.Milvus.Addr == "" {
		cfg.Milvus.Addr = DefaultMilvusAddr
	}
	if cfg.Milvus.CollectionPrefix == "" {
		cfg.Milvus.CollectionPrefix = DefaultMilvusCollectionPrefix
	}
	if cfg.Milvus.NList == 0 {
		cfg.Milvus.NList = DefaultMilvusNList
	}
	if cfg.Milvus.NProbe == 0 {
		cfg.Milvus.NProbe = DefaultMilvusNProbe
	}
	if cfg.Milvus.ConnectTimeout == 0 {
		cfg.Milvus.ConnectTimeout = DefaultMilvusConnectTimeout
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Postgres ──────────────────────────────────────────────────────────────
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = DefaultPostgresHost
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Postgres.DBName == "" {
		cfg.Postgres.DBName = DefaultPostgresDBName
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = DefaultPostgresSSLMode
	}
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = DefaultPostgresMaxConns
	}
	if cfg.Postgres.MigrationPath == "" {
		cfg.Postgres.MigrationPath = DefaultPostgresMigrationPath
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.EventsTopic == "" {
		cfg.Kafka.EventsTopic = DefaultKafkaEventsTopic
	}
	if cfg.Kafka.IngestTopic == "" {
		cfg.Kafka.IngestTopic = DefaultKafkaIngestTopic
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = DefaultKafkaDeadLetterTopic
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = DefaultKafkaMaxRetries
	}

	// ── Reports / Metrics ─────────────────────────────────────────────────────
	if cfg.Reports.OutputDir == "" {
		cfg.Reports.OutputDir = DefaultReportsDir
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// NewDefaultConfig returns a Config with every default applied. The result
// validates without any file or environment input.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Reports.RenderPDF = true
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}
