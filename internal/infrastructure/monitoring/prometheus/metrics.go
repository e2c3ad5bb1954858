package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics groups every metric LegalLens exports.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	PipelineRunsTotal     CounterVec
	PipelineDuration      HistogramVec
	PipelineStageDuration HistogramVec

	ClassificationsTotal CounterVec
	SectionsMapped       HistogramVec
	EvidenceEntities     CounterVec

	RetrievalRequestsTotal CounterVec
	RetrievalDuration      HistogramVec
	ChunksIngestedTotal    CounterVec

	LLMRequestsTotal   CounterVec
	LLMRequestDuration HistogramVec

	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	MessagesPublishedTotal CounterVec
	MessagesConsumedTotal  CounterVec

	HealthCheckStatus GaugeVec
}

var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultPipelineDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}
	DefaultLLMDurationBuckets      = []float64{.5, 1, 2, 5, 10, 30, 60, 120}
	DefaultCountBuckets            = []float64{0, 1, 2, 5, 10, 20, 50}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	if collector == nil {
		collector = NewNoopCollector()
	}
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	m.PipelineRunsTotal = collector.RegisterCounter("pipeline_runs_total", "Pipeline invocations", "pipeline", "status")
	m.PipelineDuration = collector.RegisterHistogram("pipeline_duration_seconds", "End-to-end pipeline duration", DefaultPipelineDurationBuckets, "pipeline")
	m.PipelineStageDuration = collector.RegisterHistogram("pipeline_stage_duration_seconds", "Pipeline stage duration", DefaultPipelineDurationBuckets, "pipeline", "stage")

	m.ClassificationsTotal = collector.RegisterCounter("classifications_total", "Classifications by domain", "classifier", "domain", "method")
	m.SectionsMapped = collector.RegisterHistogram("sections_mapped", "Sections returned per mapping", DefaultCountBuckets, "domain")
	m.EvidenceEntities = collector.RegisterCounter("evidence_entities_total", "Extracted evidence entities", "kind")

	m.RetrievalRequestsTotal = collector.RegisterCounter("retrieval_requests_total", "Knowledge retrieval requests", "domain", "status")
	m.RetrievalDuration = collector.RegisterHistogram("retrieval_duration_seconds", "Knowledge retrieval duration", DefaultHTTPDurationBuckets, "backend")
	m.ChunksIngestedTotal = collector.RegisterCounter("chunks_ingested_total", "Knowledge chunks ingested", "domain")

	m.LLMRequestsTotal = collector.RegisterCounter("llm_requests_total", "Reasoning provider requests", "provider", "operation", "status")
	m.LLMRequestDuration = collector.RegisterHistogram("llm_request_duration_seconds", "Reasoning provider latency", DefaultLLMDurationBuckets, "provider", "operation")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")

	m.MessagesPublishedTotal = collector.RegisterCounter("messages_published_total", "Messages published", "topic", "status")
	m.MessagesConsumedTotal = collector.RegisterCounter("messages_consumed_total", "Messages consumed", "topic", "status")

	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")

	return m
}

// NewNoopAppMetrics returns metrics that record nothing.
func NewNoopAppMetrics() *AppMetrics {
	return NewAppMetrics(NewNoopCollector())
}

// ─────────────────────────────────────────────────────────────────────────────
// Recording helpers
// ─────────────────────────────────────────────────────────────────────────────

// RecordHTTPRequest records one served request.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPipelineRun records a finished pipeline invocation.
func (m *AppMetrics) RecordPipelineRun(pipeline, status string, duration time.Duration) {
	m.PipelineRunsTotal.WithLabelValues(pipeline, status).Inc()
	m.PipelineDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
}

// RecordStage records one pipeline stage.
func (m *AppMetrics) RecordStage(pipeline, stage string, duration time.Duration) {
	m.PipelineStageDuration.WithLabelValues(pipeline, stage).Observe(duration.Seconds())
}

// RecordClassification counts a classifier outcome.
func (m *AppMetrics) RecordClassification(classifier, domain, method string) {
	m.ClassificationsTotal.WithLabelValues(classifier, domain, method).Inc()
}

// RecordSections observes how many sections a mapping produced.
func (m *AppMetrics) RecordSections(domain string, count int) {
	m.SectionsMapped.WithLabelValues(domain).Observe(float64(count))
}

// RecordEvidence adds count entities of kind.
func (m *AppMetrics) RecordEvidence(kind string, count int) {
	if count > 0 {
		m.EvidenceEntities.WithLabelValues(kind).Add(float64(count))
	}
}

// RecordRetrieval records a retrieval call.
func (m *AppMetrics) RecordRetrieval(backend, domain string, success bool, duration time.Duration) {
	m.RetrievalRequestsTotal.WithLabelValues(domain, statusLabel(success)).Inc()
	m.RetrievalDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordIngest counts ingested chunks.
func (m *AppMetrics) RecordIngest(domain string, chunks int) {
	m.ChunksIngestedTotal.WithLabelValues(domain).Add(float64(chunks))
}

// RecordLLMRequest records a reasoning provider call.
func (m *AppMetrics) RecordLLMRequest(provider, operation string, success bool, duration time.Duration) {
	m.LLMRequestsTotal.WithLabelValues(provider, operation, statusLabel(success)).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordCacheAccess counts a hit or miss.
func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordPublish counts a published message.
func (m *AppMetrics) RecordPublish(topic string, success bool) {
	m.MessagesPublishedTotal.WithLabelValues(topic, statusLabel(success)).Inc()
}

// RecordConsume counts a consumed message.
func (m *AppMetrics) RecordConsume(topic string, success bool) {
	m.MessagesConsumedTotal.WithLabelValues(topic, statusLabel(success)).Inc()
}

// SetHealth sets a component's health gauge.
func (m *AppMetrics) SetHealth(component string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
