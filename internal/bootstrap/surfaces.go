package bootstrap

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/LegalLens/internal/config"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/interfaces/cli"
	httpapi "github.com/turtacn/LegalLens/internal/interfaces/http"
	"github.com/turtacn/LegalLens/internal/interfaces/http/handlers"
	"github.com/turtacn/LegalLens/internal/interfaces/http/middleware"
)

// CLIServices exposes the App to the command line.
func (a *App) CLIServices() *cli.Services {
	svc := &cli.Services{
		Documents:  a.Documents,
		Classifier: a.Classifier,
		Sections:   a.Sections,
		Evidence:   a.Evidence,
		Advisory:   a.Advisory,
		Knowledge:  a.Knowledge,
		Cases:      a.Cases,
		Advisories: a.Advisories,
	}
	if a.Migrator != nil {
		svc.Migrator = a.Migrator
	}
	return svc
}

// ServiceFactory is the cli.ServiceFactory backed by New.
func ServiceFactory(ctx context.Context, cfg *config.Config, log logging.Logger) (*cli.Services, func(), error) {
	app, err := New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return app.CLIServices(), app.Close, nil
}

// HealthCheckers adapts Checks for the readiness probe.
func (a *App) HealthCheckers() []handlers.HealthChecker {
	out := make([]handlers.HealthChecker, 0, len(a.Checks))
	for _, c := range a.Checks {
		out = append(out, handlers.CheckFunc{Component: c.Component, Fn: c.Check})
	}
	return out
}

// Router builds the HTTP API over the App. The returned stop function
// releases the rate limiter's cleanup goroutine.
func (a *App) Router() (*gin.Engine, func()) {
	sc := a.Config.Server
	gin.SetMode(sc.Mode)

	cors := middleware.DefaultCORSConfig()
	if len(sc.CORSOrigins) > 0 {
		cors.AllowedOrigins = sc.CORSOrigins
	}

	stop := func() {}
	var limiter middleware.RateLimiter
	if sc.PipelineRateLimit > 0 {
		tb := middleware.NewTokenBucketLimiter(sc.PipelineRateLimit, sc.PipelineBurst, 5*time.Minute)
		limiter, stop = tb, tb.Stop
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		AnalysisHandler:  handlers.NewAnalysisHandler(a.Classifier, a.Sections, a.Evidence, a.Advisory),
		KnowledgeHandler: handlers.NewKnowledgeHandler(a.Knowledge),
		PipelineHandler:  handlers.NewPipelineHandler(a.Cases, a.Advisories, sc.MaxBodySize),
		HealthHandler:    handlers.NewHealthHandler(config.Version, a.Metrics, a.HealthCheckers()...),
		CORS:             cors,
		Logging:          middleware.DefaultLoggingConfig(),
		PipelineLimiter:  limiter,
		MaxBodySize:      sc.MaxBodySize,
		Logger:           a.Logger,
		Metrics:          a.Metrics,
		MetricsCollector: a.Collector,
	})
	return router, stop
}
