// Knowledge ingestion worker for LegalLens. It consumes the ingest topic
// and writes each document through the knowledge service, so API replicas
// can accept ingests without blocking on embedding and vector writes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/LegalLens/internal/bootstrap"
	"github.com/turtacn/LegalLens/internal/config"
	"github.com/turtacn/LegalLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/LegalLens/internal/interfaces/http"
	"github.com/turtacn/LegalLens/internal/interfaces/http/handlers"
	"github.com/turtacn/LegalLens/internal/interfaces/http/middleware"
)

const (
	defaultHealthAddr = ":8081"
	shutdownTimeout   = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: LEGALLENS_* environment)")
	healthAddr := flag.String("health-addr", defaultHealthAddr, "address for /healthz, /readyz and /metrics")
	ensureTopics := flag.Bool("ensure-topics", true, "create the kafka topics when missing")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	if err := run(cfg, *healthAddr, *ensureTopics, logger); err != nil {
		logger.Error("worker stopped with error", logging.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg *config.Config, healthAddr string, ensureTopics bool, logger logging.Logger) error {
	if !cfg.Kafka.Enabled {
		return errors.New("kafka.enabled must be true to run the ingestion worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting LegalLens ingestion worker",
		logging.String("version", config.Version),
		logging.String("topic", cfg.Kafka.IngestTopic),
		logging.String("group", cfg.Kafka.GroupID))

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if ensureTopics {
		createTopics(ctx, cfg, logger)
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topics:  []string{cfg.Kafka.IngestTopic},
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      cfg.Kafka.MaxRetries,
			RetryBackoff:    time.Second,
			MaxRetryBackoff: 30 * time.Second,
			DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
		},
	}, app.Metrics, logger)
	if err != nil {
		return err
	}
	consumer.Subscribe(cfg.Kafka.IngestTopic, app.Knowledge.HandleMessage)

	health := startHealthServer(app, healthAddr, logger)

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("shutdown signal received")

	if err := consumer.Close(); err != nil {
		logger.Warn("failed to close consumer", logging.Err(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown failed", logging.Err(err))
	}
	logger.Info("worker stopped")
	return nil
}

// createTopics is best-effort; brokers with auto-creation or restricted
// admin rights are common.
func createTopics(ctx context.Context, cfg *config.Config, logger logging.Logger) {
	tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Warn("topic manager unavailable", logging.Err(err))
		return
	}
	defer tm.Close()
	topics := kafka.DefaultTopics(cfg.Kafka.EventsTopic, cfg.Kafka.IngestTopic, cfg.Kafka.DeadLetterTopic)
	if err := tm.EnsureTopics(ctx, topics); err != nil {
		logger.Warn("failed to ensure kafka topics", logging.Err(err))
	}
}

func startHealthServer(app *bootstrap.App, addr string, logger logging.Logger) *http.Server {
	router := httpapi.NewRouter(httpapi.RouterConfig{
		HealthHandler:    handlers.NewHealthHandler(config.Version, app.Metrics, app.HealthCheckers()...),
		CORS:             middleware.DefaultCORSConfig(),
		Logging:          middleware.DefaultLoggingConfig(),
		Logger:           logger,
		Metrics:          app.Metrics,
		MetricsCollector: app.Collector,
	})
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("health server listening", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", logging.Err(err))
		}
	}()
	return srv
}
