// Package reasoning turns pipeline findings into narrative legal analysis. A
// Generator produces free text from a prompt; Provider builds the prompts and
// falls back to deterministic templates when generation is unavailable.
package reasoning

import (
	"context"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LegalLens/pkg/errors"
)

// Generator produces text for a prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

type generateFunc func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)

// GeminiGenerator calls a Gemini generative model.
type GeminiGenerator struct {
	model    string
	timeout  time.Duration
	generate generateFunc
	closer   func() error
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
}

// GeminiConfig configures NewGeminiGenerator.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewGeminiGenerator opens a Gemini client. Close releases it.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig, metrics *prometheus.AppMetrics, log logging.Logger) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeLLMUnavailable, "gemini api key is not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLLMUnavailable, "failed to create gemini client")
	}
	model := client.GenerativeModel(cfg.Model)
	g := newGeminiGenerator(cfg, func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
		return model.GenerateContent(ctx, genai.Text(prompt))
	}, metrics, log)
	g.closer = client.Close
	return g, nil
}

func newGeminiGenerator(cfg GeminiConfig, fn generateFunc, metrics *prometheus.AppMetrics, log logging.Logger) *GeminiGenerator {
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &GeminiGenerator{
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		generate: fn,
		metrics:  metrics,
		logger:   log.Named("gemini-generator"),
	}
}

func (g *GeminiGenerator) Name() string { return g.model }

// Generate returns the concatenated text parts of the first candidate.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.generate(ctx, prompt)
	if err != nil {
		g.metrics.RecordLLMRequest("gemini", "generate", false, time.Since(start))
		return "", errors.Wrap(err, errors.ErrCodeLLMFailed, "gemini generation failed")
	}
	text := responseText(resp)
	g.metrics.RecordLLMRequest("gemini", "generate", text != "", time.Since(start))
	if text == "" {
		return "", errors.New(errors.ErrCodeLLMEmpty, "gemini returned no text")
	}
	g.logger.Debug("generation complete",
		logging.String("model", g.model),
		logging.Int("prompt_chars", len(prompt)),
		logging.Int("response_chars", len(text)),
		logging.Duration("elapsed", time.Since(start)))
	return text, nil
}

func (g *GeminiGenerator) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}
