// API server entry point for LegalLens.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/LegalLens/internal/bootstrap"
	"github.com/turtacn/LegalLens/internal/config"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/LegalLens/internal/interfaces/http"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: LEGALLENS_* environment)")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Error("api server stopped with error", logging.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting LegalLens API server",
		logging.String("version", config.Version),
		logging.String("addr", cfg.ServerAddr()))

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if configPath != "" {
		// Backends are wired once at startup; a changed file only takes
		// effect on restart.
		err := config.Watch(configPath,
			func(*config.Config) { logger.Warn("configuration file changed; restart to apply") },
			func(err error) { logger.Error("configuration file is invalid", logging.Err(err)) })
		if err != nil {
			logger.Warn("config watch disabled", logging.Err(err))
		}
	}

	router, stopLimiter := app.Router()
	defer stopLimiter()

	srv := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            cfg.ServerAddr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	if err := srv.Stop(context.Background()); err != nil {
		return err
	}
	logger.Info("api server stopped")
	return nil
}
