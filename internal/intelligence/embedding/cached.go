package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/turtacn/LegalLens/internal/infrastructure/database/redis"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
)

// CachedEncoder memoizes another encoder in Redis. Concurrent misses for the
// same text are collapsed by the cache. Cache failures fall through to the
// wrapped encoder.
type CachedEncoder struct {
	inner   Encoder
	cache   redis.Cache
	ttl     time.Duration
	metrics *prometheus.AppMetrics
	logger  logging.Logger
}

func NewCachedEncoder(inner Encoder, cache redis.Cache, ttl time.Duration, metrics *prometheus.AppMetrics, log logging.Logger) *CachedEncoder {
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CachedEncoder{inner: inner, cache: cache, ttl: ttl, metrics: metrics, logger: log}
}

func (c *CachedEncoder) Name() string    { return c.inner.Name() }
func (c *CachedEncoder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	loaded := false
	var vec []float32
	err := c.cache.GetOrSet(ctx, key, &vec, c.ttl, func(ctx context.Context) (interface{}, error) {
		loaded = true
		return c.inner.Encode(ctx, text)
	})
	if err == nil {
		c.metrics.RecordCacheAccess("embedding", !loaded)
		return vec, nil
	}
	if loaded {
		// The wrapped encoder itself failed.
		return nil, err
	}
	c.logger.Warn("embedding cache unavailable", logging.String("encoder", c.inner.Name()), logging.Err(err))
	c.metrics.RecordCacheAccess("embedding", false)
	return c.inner.Encode(ctx, text)
}

func (c *CachedEncoder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.inner.Name() + ":" + hex.EncodeToString(sum[:])
}
