package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for every setting.
const envPrefix = "LEGALLENS"

// envKeys lists every leaf key so viper can resolve LEGALLENS_* variables
// even when no config file mentions the key.
var envKeys = []string{
	"server.host", "server.port", "server.mode", "server.read_timeout", "server.write_timeout",
	"server.max_body_size", "server.shutdown_timeout", "server.cors_origins",
	"server.pipeline_rate_limit", "server.pipeline_burst",
	"log.level", "log.format", "log.output_paths", "log.error_output_paths",
	"intelligence.encoder", "intelligence.hash_dimensions", "intelligence.use_embeddings",
	"intelligence.gemini_api_key", "intelligence.gemini_model", "intelligence.gemini_embedding_model",
	"intelligence.request_timeout", "intelligence.ner_backend_url", "intelligence.ner_model_id",
	"intelligence.sections_path", "intelligence.knowledge_dir",
	"retrieval.backend", "retrieval.chunk_size", "retrieval.top_k",
	"milvus.addr", "milvus.username", "milvus.password", "milvus.db_name", "milvus.collection_prefix",
	"milvus.nlist", "milvus.nprobe", "milvus.connect_timeout",
	"redis.enabled", "redis.addr", "redis.password", "redis.db", "redis.pool_size", "redis.dial_timeout",
	"redis.read_timeout", "redis.write_timeout", "redis.default_ttl", "redis.key_prefix",
	"postgres.enabled", "postgres.host", "postgres.port", "postgres.user", "postgres.password",
	"postgres.db_name", "postgres.ssl_mode", "postgres.max_conns", "postgres.min_conns",
	"postgres.conn_max_lifetime", "postgres.conn_max_idle_time", "postgres.migration_path",
	"minio.enabled", "minio.endpoint", "minio.access_key", "minio.secret_key", "minio.bucket",
	"minio.region", "minio.use_ssl",
	"kafka.enabled", "kafka.brokers", "kafka.group_id", "kafka.events_topic", "kafka.ingest_topic",
	"kafka.dead_letter_topic", "kafka.max_retries",
	"reports.output_dir", "reports.render_pdf",
	"metrics.enabled", "metrics.namespace",
}

// newViper builds a Viper instance with YAML file type, the LEGALLENS_ env
// prefix and a "." -> "_" key replacer, so "redis.addr" resolves to
// LEGALLENS_REDIS_ADDR.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	// Booleans that default to true cannot be detected as unset after
	// unmarshalling, so they are seeded here instead of in ApplyDefaults.
	v.SetDefault("reports.render_pdf", true)
	v.SetDefault("metrics.enabled", true)
	return v
}

// Load reads the YAML file at configPath, merges LEGALLENS_* overrides,
// applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from LEGALLENS_* variables and defaults only.
//
//	LEGALLENS_<SECTION>_<FIELD>   e.g.  LEGALLENS_RETRIEVAL_BACKEND
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadOrDefault loads configPath when non-empty, otherwise falls back to the
// environment.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch re-parses configPath on every change and calls onChange with the new
// Config. Invalid revisions are reported to onError (when non-nil) and never
// reach onChange. Watch does not block.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on any error. For main() only.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
