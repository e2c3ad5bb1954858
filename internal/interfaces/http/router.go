package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LegalLens/internal/interfaces/http/handlers"
	"github.com/turtacn/LegalLens/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware settings of the route
// tree. Nil handlers leave their routes unmounted.
type RouterConfig struct {
	AnalysisHandler  *handlers.AnalysisHandler
	KnowledgeHandler *handlers.KnowledgeHandler
	PipelineHandler  *handlers.PipelineHandler
	HealthHandler    *handlers.HealthHandler

	CORS    middleware.CORSConfig
	Logging middleware.LoggingConfig
	// PipelineLimiter throttles the expensive pipeline endpoints. Nil
	// disables throttling.
	PipelineLimiter middleware.RateLimiter
	// MaxBodySize bounds request bodies, multipart included.
	MaxBodySize int64

	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter builds the gin engine: global middleware, probes, the metrics
// scrape endpoint and the /api/v1 groups.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Metrics, cfg.Logging))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	registerAnalysisRoutes(api, cfg.AnalysisHandler)
	registerKnowledgeRoutes(api, cfg.KnowledgeHandler)
	registerPipelineRoutes(api, cfg.PipelineHandler, cfg.PipelineLimiter)

	return r
}

func registerAnalysisRoutes(r *gin.RouterGroup, h *handlers.AnalysisHandler) {
	if h == nil {
		return
	}
	r.POST("/classify", h.Classify)
	r.POST("/evidence", h.Evidence)
	r.POST("/advisory/classify", h.ClassifyAdvisory)

	sections := r.Group("/sections")
	sections.POST("/map", h.MapSections)
	sections.GET("/search", h.SearchSections)
	sections.GET("/:act/:number", h.SectionDetails)
}

func registerKnowledgeRoutes(r *gin.RouterGroup, h *handlers.KnowledgeHandler) {
	if h == nil {
		return
	}
	kg := r.Group("/knowledge")
	kg.POST("/retrieve", h.Retrieve)
	kg.POST("/ingest", h.Ingest)
	kg.GET("/stats", h.Stats)
	kg.GET("/sources", h.Sources)
}

func registerPipelineRoutes(r *gin.RouterGroup, h *handlers.PipelineHandler, limiter middleware.RateLimiter) {
	if h == nil {
		return
	}
	g := r.Group("")
	if limiter != nil {
		g.Use(middleware.RateLimit(limiter))
	}
	g.POST("/cases", h.AnalyzeCase)
	g.POST("/advisories", h.AnalyzeAdvisory)
}
