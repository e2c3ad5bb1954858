package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrape(t *testing.T, c MetricsCollector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewMetricsCollector_RequiresNamespace(t *testing.T) {
	t.Parallel()

	_, err := NewMetricsCollector(CollectorConfig{}, nil)
	assert.Error(t, err)
}

func TestNewMetricsCollector_RuntimeCollectors(t *testing.T) {
	t.Parallel()

	c, err := NewMetricsCollector(CollectorConfig{Namespace: "rt", EnableGoMetrics: true, EnableProcessMetrics: true}, nil)
	require.NoError(t, err)
	assert.Contains(t, scrape(t, c), "go_goroutines")
}

func TestRegisterCounter_Exposed(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	vec := c.RegisterCounter("stage_total", "stages", "stage")
	vec.WithLabelValues("classification").Inc()
	vec.WithLabelValues("classification").Add(2)

	assert.Contains(t, scrape(t, c), `test_stage_total{stage="classification"} 3`)
}

func TestRegister_IsIdempotent(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	a := c.RegisterCounter("dup_total", "dup", "k")
	b := c.RegisterCounter("dup_total", "dup", "k")
	a.WithLabelValues("x").Inc()
	b.WithLabelValues("x").Inc()

	assert.Contains(t, scrape(t, c), `test_dup_total{k="x"} 2`)
}

func TestRegister_TypeMismatchFallsBackToNoop(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	c.RegisterCounter("shared", "counter first", "k")
	g := c.RegisterGauge("shared", "then gauge", "k")
	_, isNoop := g.(noopGaugeVec)
	assert.True(t, isNoop)
	g.WithLabelValues("x").Set(5)
}

func TestRegisterGaugeAndHistogram(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	c.RegisterGauge("up", "up", "component").WithLabelValues("redis").Set(1)
	c.RegisterHistogram("latency_seconds", "latency", nil, "op").WithLabelValues("search").Observe(0.2)

	body := scrape(t, c)
	assert.Contains(t, body, `test_up{component="redis"} 1`)
	assert.Contains(t, body, `test_latency_seconds_count{op="search"} 1`)
}

func TestNoopCollector(t *testing.T) {
	t.Parallel()

	c := NewNoopCollector()
	c.RegisterCounter("a", "a").WithLabelValues().Inc()
	c.RegisterGauge("b", "b").WithLabelValues().Dec()
	c.RegisterHistogram("c", "c", nil).WithLabelValues().Observe(1)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type recordingHistogram struct{ values []float64 }

func (r *recordingHistogram) Observe(v float64) { r.values = append(r.values, v) }

func TestTimer(t *testing.T) {
	t.Parallel()

	h := &recordingHistogram{}
	timer := NewTimer(h)
	time.Sleep(5 * time.Millisecond)
	d := timer.ObserveDuration()

	require.Len(t, h.values, 1)
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)

	assert.NotPanics(t, func() { NewTimer(nil).ObserveDuration() })
}
