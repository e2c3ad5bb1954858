package embedding

import (
	"context"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LegalLens/pkg/errors"
)

const geminiEmbeddingDimensions = 768

type embedFunc func(ctx context.Context, text string) ([]float32, error)

// GeminiEncoder calls the Gemini embedding endpoint.
type GeminiEncoder struct {
	model   string
	dims    int
	timeout time.Duration
	embed   embedFunc
	closer  func() error
	metrics *prometheus.AppMetrics
	logger  logging.Logger
}

// GeminiConfig configures NewGeminiEncoder.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewGeminiEncoder opens a Gemini client. Close releases it.
func NewGeminiEncoder(ctx context.Context, cfg GeminiConfig, metrics *prometheus.AppMetrics, log logging.Logger) (*GeminiEncoder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeLLMUnavailable, "gemini api key is not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLLMUnavailable, "failed to create gemini client")
	}
	em := client.EmbeddingModel(cfg.Model)
	embed := func(ctx context.Context, text string) ([]float32, error) {
		res, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if res == nil || res.Embedding == nil {
			return nil, errors.New(errors.ErrCodeLLMEmpty, "gemini returned no embedding")
		}
		return res.Embedding.Values, nil
	}
	enc := newGeminiEncoder(cfg, embed, metrics, log)
	enc.closer = client.Close
	return enc, nil
}

func newGeminiEncoder(cfg GeminiConfig, embed embedFunc, metrics *prometheus.AppMetrics, log logging.Logger) *GeminiEncoder {
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &GeminiEncoder{
		model:   cfg.Model,
		dims:    geminiEmbeddingDimensions,
		timeout: cfg.Timeout,
		embed:   embed,
		metrics: metrics,
		logger:  log.Named("gemini-encoder"),
	}
}

func (e *GeminiEncoder) Name() string    { return "gemini:" + e.model }
func (e *GeminiEncoder) Dimensions() int { return e.dims }

func (e *GeminiEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	vec, err := e.embed(ctx, text)
	e.metrics.RecordLLMRequest("gemini", "embed", err == nil, time.Since(start))
	if err != nil {
		e.logger.Warn("embedding request failed", logging.String("model", e.model), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeEncoderFailed, "gemini embedding failed")
	}
	return vec, nil
}

func (e *GeminiEncoder) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}
