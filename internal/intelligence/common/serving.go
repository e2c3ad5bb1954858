package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
)

// HTTPBackendConfig configures an HTTPBackend.
type HTTPBackendConfig struct {
	BaseURL string
	Timeout time.Duration
	// Client overrides the HTTP client; tests point it at httptest servers.
	Client *http.Client
}

// HTTPBackend implements ModelBackend against a JSON model server exposing
// POST {base}/v1/models/{name}:predict and GET {base}/healthz.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
	logger  logging.Logger
	closed  atomic.Bool
}

// NewHTTPBackend creates a backend for cfg.BaseURL.
func NewHTTPBackend(cfg HTTPBackendConfig, logger logging.Logger) (*HTTPBackend, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		logger:  logger.Named("model_backend"),
	}, nil
}

// Predict posts req and decodes the response.
func (b *HTTPBackend) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	if b.closed.Load() {
		return nil, ErrClientClosed
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/v1/models/%s:predict", b.baseURL, req.ModelName)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServingUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrModelNotDeployed, req.ModelName)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrServingUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrInvalidInput, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.InferenceTimeMs == 0 {
		out.InferenceTimeMs = time.Since(start).Milliseconds()
	}
	b.logger.Debug("predict completed",
		logging.String("model", req.ModelName),
		logging.Int64("inference_ms", out.InferenceTimeMs))
	return &out, nil
}

// Healthy probes the server's health endpoint.
func (b *HTTPBackend) Healthy(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClientClosed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServingUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrServingUnavailable, resp.StatusCode)
	}
	return nil
}

// Close marks the backend closed. Subsequent calls fail with ErrClientClosed.
func (b *HTTPBackend) Close() error {
	b.closed.Store(true)
	return nil
}
