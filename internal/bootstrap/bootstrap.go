// Package bootstrap assembles the LegalLens component graph from a Config.
// Every binary builds its dependencies here so the API server, the CLI and
// the ingestion worker share one wiring.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/turtacn/LegalLens/internal/application/knowledge"
	"github.com/turtacn/LegalLens/internal/application/pipeline"
	"github.com/turtacn/LegalLens/internal/application/reporting"
	"github.com/turtacn/LegalLens/internal/config"
	"github.com/turtacn/LegalLens/internal/infrastructure/database/postgres"
	"github.com/turtacn/LegalLens/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/LegalLens/internal/infrastructure/database/redis"
	"github.com/turtacn/LegalLens/internal/infrastructure/document"
	"github.com/turtacn/LegalLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LegalLens/internal/infrastructure/search/milvus"
	"github.com/turtacn/LegalLens/internal/infrastructure/storage/minio"
	"github.com/turtacn/LegalLens/internal/intelligence/advisory"
	"github.com/turtacn/LegalLens/internal/intelligence/common"
	"github.com/turtacn/LegalLens/internal/intelligence/embedding"
	"github.com/turtacn/LegalLens/internal/intelligence/evidence"
	"github.com/turtacn/LegalLens/internal/intelligence/issue"
	"github.com/turtacn/LegalLens/internal/intelligence/ner"
	"github.com/turtacn/LegalLens/internal/intelligence/preprocess"
	"github.com/turtacn/LegalLens/internal/intelligence/reasoning"
	"github.com/turtacn/LegalLens/internal/intelligence/retrieval"
	"github.com/turtacn/LegalLens/internal/intelligence/sections"
)

// HealthCheck probes one backend.
type HealthCheck struct {
	Component string
	Check     func(ctx context.Context) error
}

// App is the assembled component graph.
type App struct {
	Config    *config.Config
	Logger    logging.Logger
	Metrics   *prometheus.AppMetrics
	Collector prometheus.MetricsCollector

	Documents  *document.Intake
	Normalizer *preprocess.TextNormalizer
	Classifier *issue.KeywordClassifier
	Sections   *sections.Mapper
	Evidence   *evidence.PatternExtractor
	Advisory   *advisory.SimilarityClassifier
	Retriever  *retrieval.KnowledgeRetriever
	Knowledge  *knowledge.Service
	Reasoner   reasoning.Provider
	Reports    reporting.ReportService
	Cases      *pipeline.CaseOrchestrator
	Advisories *pipeline.AdvisoryOrchestrator

	// Migrator is nil unless the postgres registry is enabled.
	Migrator *postgres.Migrator
	// Producer is nil unless kafka is enabled.
	Producer *kafka.Producer

	Checks []HealthCheck

	redis   *redis.Client
	closers []func() error
}

// New builds every component cfg enables. On error, whatever was opened is
// closed before returning.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	app := &App{Config: cfg, Logger: log}
	if err := app.build(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	if err := a.initMetrics(); err != nil {
		return err
	}
	enc, gen, err := a.initModels(ctx)
	if err != nil {
		return err
	}
	if err := a.initAnalysis(ctx, enc, gen); err != nil {
		return err
	}
	if err := a.initKnowledge(ctx, enc); err != nil {
		return err
	}
	if err := a.initPipelines(ctx); err != nil {
		return err
	}

	if dir := cfg.Intelligence.KnowledgeDir; dir != "" {
		res, err := a.Knowledge.LoadDirectory(ctx, dir)
		if err != nil {
			a.Logger.Warn("failed to load knowledge directory", logging.String("dir", dir), logging.Err(err))
		} else {
			a.Logger.Info("knowledge directory loaded",
				logging.String("dir", dir),
				logging.Int("loaded", len(res.Loaded)),
				logging.Int("skipped", len(res.Skipped)),
				logging.Int("failed", len(res.Failed)))
		}
	}

	a.Logger.Info("legallens components initialized",
		logging.String("encoder", enc.Name()),
		logging.String("retrieval_backend", cfg.Retrieval.Backend),
		logging.Bool("postgres", cfg.Postgres.Enabled),
		logging.Bool("redis", cfg.Redis.Enabled),
		logging.Bool("minio", cfg.MinIO.Enabled),
		logging.Bool("kafka", cfg.Kafka.Enabled))
	return nil
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("failed to close component", logging.Err(err))
		}
	}
	a.closers = nil
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *App) addCheck(component string, fn func(ctx context.Context) error) {
	a.Checks = append(a.Checks, HealthCheck{Component: component, Check: fn})
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) initMetrics() error {
	if !a.Config.Metrics.Enabled {
		a.Collector = prometheus.NewNoopCollector()
		a.Metrics = prometheus.NewNoopAppMetrics()
		return nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            a.Config.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
		ConstLabels:          map[string]string{"version": config.Version},
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	a.Collector = collector
	a.Metrics = prometheus.NewAppMetrics(collector)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Encoder and generator
// ─────────────────────────────────────────────────────────────────────────────

// initModels returns the text encoder (Redis-cached when enabled) and the
// Gemini generator, which is nil without an API key.
func (a *App) initModels(ctx context.Context) (embedding.Encoder, reasoning.Generator, error) {
	ic := a.Config.Intelligence

	var gen reasoning.Generator
	if ic.GeminiAPIKey != "" {
		g, err := reasoning.NewGeminiGenerator(ctx, reasoning.GeminiConfig{
			APIKey:  ic.GeminiAPIKey,
			Model:   ic.GeminiModel,
			Timeout: ic.RequestTimeout,
		}, a.Metrics, a.Logger)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini generator: %w", err)
		}
		a.onClose(g.Close)
		gen = g
	}

	var enc embedding.Encoder
	switch ic.Encoder {
	case "gemini":
		g, err := embedding.NewGeminiEncoder(ctx, embedding.GeminiConfig{
			APIKey:  ic.GeminiAPIKey,
			Model:   ic.GeminiEmbeddingModel,
			Timeout: ic.RequestTimeout,
		}, a.Metrics, a.Logger)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini encoder: %w", err)
		}
		a.onClose(g.Close)
		enc = g
	default:
		h, err := embedding.NewHashingEncoder(ic.HashDimensions)
		if err != nil {
			return nil, nil, fmt.Errorf("hashing encoder: %w", err)
		}
		enc = h
	}

	if !a.Config.Redis.Enabled {
		return enc, gen, nil
	}
	rc := a.Config.Redis
	client, err := redis.NewClient(&redis.RedisConfig{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	}, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	a.onClose(client.Close)
	a.addCheck("redis", client.Ping)
	a.redis = client

	cache := redis.NewRedisCache(client, a.Logger,
		redis.WithPrefix(rc.KeyPrefix),
		redis.WithDefaultTTL(rc.DefaultTTL),
		redis.WithJitter(true))
	return embedding.NewCachedEncoder(enc, cache, rc.DefaultTTL, a.Metrics, a.Logger), gen, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Analysis components
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) initAnalysis(ctx context.Context, enc embedding.Encoder, gen reasoning.Generator) error {
	ic := a.Config.Intelligence

	a.Documents = document.NewIntake(a.Logger)

	var translator preprocess.Translator
	if gen != nil {
		translator = reasoning.NewGeneratorTranslator(gen)
	}
	a.Normalizer = preprocess.NewTextNormalizer(translator, a.Logger)

	opts := []issue.Option{issue.WithMetrics(a.Metrics)}
	if ic.UseEmbeddings {
		opts = append(opts, issue.WithEncoder(enc))
	}
	a.Classifier = issue.NewKeywordClassifier(a.Logger, opts...)

	var err error
	if ic.SectionsPath != "" {
		a.Sections, err = sections.NewMapperFromFile(ic.SectionsPath, a.Metrics, a.Logger)
	} else {
		a.Sections, err = sections.NewMapper(a.Metrics, a.Logger)
	}
	if err != nil {
		return fmt.Errorf("sections: %w", err)
	}

	recognizer, err := a.recognizer()
	if err != nil {
		return err
	}
	a.Evidence = evidence.NewPatternExtractor(recognizer, a.Metrics, a.Logger)

	a.Advisory, err = advisory.NewSimilarityClassifier(ctx, enc, a.Metrics, a.Logger)
	if err != nil {
		return fmt.Errorf("advisory classifier: %w", err)
	}

	if gen != nil {
		a.Reasoner = reasoning.NewGenerativeProvider(gen, a.Metrics, a.Logger)
	} else {
		a.Reasoner = reasoning.NewTemplateProvider(a.Logger)
	}
	return nil
}

// recognizer prefers the model server and falls back to the rules for any
// call the model fails.
func (a *App) recognizer() (ner.Recognizer, error) {
	rules := ner.NewRuleRecognizer()
	ic := a.Config.Intelligence
	if ic.NERBackendURL == "" {
		return rules, nil
	}
	backend, err := common.NewHTTPBackend(common.HTTPBackendConfig{
		BaseURL: ic.NERBackendURL,
		Timeout: ic.RequestTimeout,
	}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("ner backend: %w", err)
	}
	a.onClose(backend.Close)
	a.addCheck("ner", backend.Healthy)

	mc := ner.DefaultModelConfig()
	if ic.NERModelID != "" {
		mc.ModelID = ic.NERModelID
	}
	model, err := ner.NewModelRecognizer(backend, mc, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("ner model: %w", err)
	}
	return ner.WithFallback(model, rules, a.Logger), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Knowledge
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) initKnowledge(ctx context.Context, enc embedding.Encoder) error {
	store, err := a.vectorStore()
	if err != nil {
		return err
	}
	a.Retriever, err = retrieval.NewKnowledgeRetriever(ctx, store, enc, a.Logger,
		retrieval.WithChunkSize(a.Config.Retrieval.ChunkSize),
		retrieval.WithMetrics(a.Metrics))
	if err != nil {
		return fmt.Errorf("retriever: %w", err)
	}

	opts := []knowledge.Option{knowledge.WithChunkSize(a.Config.Retrieval.ChunkSize)}

	if a.Config.Postgres.Enabled {
		pc := a.postgresConfig()
		conn, err := postgres.NewConnection(ctx, pc, a.Logger)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		a.onClose(conn.Close)
		a.addCheck("postgres", conn.HealthCheck)
		a.Migrator = postgres.NewMigrator(migrationSource(a.Config.Postgres.MigrationPath), pc, a.Logger)
		opts = append(opts, knowledge.WithRegistry(repositories.NewKnowledgeSourceRepo(conn, a.Logger)))
	}

	if a.redis != nil {
		client := a.redis
		opts = append(opts, knowledge.WithLocks(func(name string) knowledge.Locker {
			return redis.NewMutex(client, "ingest:"+name, a.Logger, redis.WithLockTTL(time.Minute))
		}))
	}

	if a.Config.Kafka.Enabled {
		p, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: a.Config.Kafka.Brokers}, a.Metrics, a.Logger)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		a.onClose(p.Close)
		a.Producer = p
		opts = append(opts, knowledge.WithPublisher(p, a.Config.Kafka.IngestTopic))
	}

	a.Knowledge = knowledge.NewService(a.Retriever, a.Logger, opts...)
	return nil
}

func (a *App) vectorStore() (retrieval.VectorStore, error) {
	if a.Config.Retrieval.Backend != "milvus" {
		return retrieval.NewMemoryStore(), nil
	}
	mc := a.Config.Milvus
	client, err := milvus.NewClient(milvus.ClientConfig{
		Address:        mc.Addr,
		Username:       mc.Username,
		Password:       mc.Password,
		DBName:         mc.DBName,
		ConnectTimeout: mc.ConnectTimeout,
	}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("milvus: %w", err)
	}
	store := milvus.NewStore(client, milvus.StoreConfig{
		CollectionPrefix: mc.CollectionPrefix,
		NList:            mc.NList,
		NProbe:           mc.NProbe,
	}, a.Logger)
	a.onClose(store.Close)
	a.addCheck("milvus", func(ctx context.Context) error {
		c, _ := retrieval.CollectionFor("Property")
		_, err := store.Count(ctx, c)
		return err
	})
	return store, nil
}

func (a *App) postgresConfig() postgres.PostgresConfig {
	pc := a.Config.Postgres
	return postgres.PostgresConfig{
		Host:            pc.Host,
		Port:            pc.Port,
		Database:        pc.DBName,
		Username:        pc.User,
		Password:        pc.Password,
		SSLMode:         pc.SSLMode,
		MaxOpenConns:    pc.MaxConns,
		MaxIdleConns:    pc.MinConns,
		ConnMaxLifetime: pc.ConnMaxLifetime,
		ConnMaxIdleTime: pc.ConnMaxIdleTime,
	}
}

// migrationSource turns a directory into a golang-migrate source URL.
// Values that already carry a scheme are used as-is.
func migrationSource(path string) string {
	if path == "" {
		path = "migrations"
	}
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipelines
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) initPipelines(ctx context.Context) error {
	if err := os.MkdirAll(a.Config.Reports.OutputDir, 0o755); err != nil {
		return fmt.Errorf("reports dir: %w", err)
	}
	opts := reporting.Options{
		OutputDir: a.Config.Reports.OutputDir,
		RenderPDF: a.Config.Reports.RenderPDF,
	}
	if a.Config.MinIO.Enabled {
		mc := a.Config.MinIO
		client, err := minio.NewClient(ctx, minio.Config{
			Endpoint:  mc.Endpoint,
			AccessKey: mc.AccessKey,
			SecretKey: mc.SecretKey,
			UseSSL:    mc.UseSSL,
			Region:    mc.Region,
			Bucket:    mc.Bucket,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("minio: %w", err)
		}
		a.onClose(client.Close)
		a.addCheck("minio", client.HealthCheck)
		opts.Storage = minio.NewReportStore(client, a.Logger)
	}
	a.Reports = reporting.NewReportService(opts, nil, a.Logger)

	var publisher pipeline.EventPublisher
	if a.Producer != nil {
		publisher = a.Producer
	}

	a.Cases = pipeline.NewCaseOrchestrator(pipeline.CaseDeps{
		Intake:     a.Documents,
		Normalizer: a.Normalizer,
		Classifier: a.Classifier,
		Mapper:     a.Sections,
		Evidence:   a.Evidence,
		Reasoner:   a.Reasoner,
		Renderer:   a.Reports,
		Publisher:  publisher,
		EventTopic: a.Config.Kafka.EventsTopic,
		Metrics:    a.Metrics,
		Logger:     a.Logger,
	})
	a.Advisories = pipeline.NewAdvisoryOrchestrator(pipeline.AdvisoryDeps{
		Intake:     a.Documents,
		Normalizer: a.Normalizer,
		Classifier: a.Advisory,
		Retriever:  a.Knowledge,
		Reasoner:   a.Reasoner,
		Renderer:   a.Reports,
		Publisher:  publisher,
		EventTopic: a.Config.Kafka.EventsTopic,
		Metrics:    a.Metrics,
		Logger:     a.Logger,
	})
	return nil
}
