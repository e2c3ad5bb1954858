// Package common holds the model-serving contract shared by the
// model-backed analysis components.
package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// InputFormat enum
// ---------------------------------------------------------------------------

type InputFormat int

const (
	FormatJSON InputFormat = iota
	FormatText
)

func (f InputFormat) String() string {
	switch f {
	case FormatJSON:
		return "JSON"
	case FormatText:
		return "Text"
	default:
		return "Unknown"
	}
}

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrServingUnavailable = errors.New("serving unavailable")
	ErrModelNotDeployed   = errors.New("model not deployed")
	ErrClientClosed       = errors.New("client closed")
)

// ---------------------------------------------------------------------------
// ModelBackend interface
// ---------------------------------------------------------------------------

// ModelBackend invokes a hosted model (token classifier, encoder).
type ModelBackend interface {
	Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error)
	Healthy(ctx context.Context) error
	Close() error
}

// ---------------------------------------------------------------------------
// Predict types
// ---------------------------------------------------------------------------

// PredictRequest carries the input payload for model inference.
type PredictRequest struct {
	ModelName    string            `json:"model_name"`
	ModelVersion string            `json:"model_version,omitempty"`
	InputData    []byte            `json:"input_data"`
	InputFormat  InputFormat       `json:"input_format"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the request is valid.
func (r *PredictRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidInput)
	}
	if r.ModelName == "" {
		return fmt.Errorf("%w: model_name is required", ErrInvalidInput)
	}
	if len(r.InputData) == 0 {
		return fmt.Errorf("%w: input_data is required", ErrInvalidInput)
	}
	return nil
}

// PredictResponse carries the raw outputs from model inference. Output values
// are whatever the transport decoded them to; use the Decode helpers.
type PredictResponse struct {
	ModelName       string                 `json:"model_name"`
	ModelVersion    string                 `json:"model_version"`
	Outputs         map[string]interface{} `json:"outputs"`
	InferenceTimeMs int64                  `json:"inference_time_ms"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// EncodeTokenList encodes a list of tokens into a JSON byte slice.
func EncodeTokenList(tokens []string) []byte {
	b, _ := json.Marshal(tokens)
	return b
}

// DecodeTokenList decodes a JSON byte slice into a list of tokens.
func DecodeTokenList(data []byte) ([]string, error) {
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// DecodeFloat64Matrix converts a decoded output (a [][]float64, raw JSON bytes
// or the []interface{} produced by encoding/json) into a matrix.
func DecodeFloat64Matrix(input interface{}) ([][]float64, error) {
	if input == nil {
		return nil, fmt.Errorf("input is nil")
	}

	if mat, ok := input.([][]float64); ok {
		return mat, nil
	}

	if b, ok := input.([]byte); ok {
		var raw interface{}
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("unmarshal json: %w", err)
		}
		return DecodeFloat64Matrix(raw)
	}

	slice, ok := input.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected []interface{}, got %T", input)
	}

	result := make([][]float64, len(slice))
	for i, rowRaw := range slice {
		rowSlice, ok := rowRaw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("row %d is not []interface{}, got %T", i, rowRaw)
		}
		row := make([]float64, len(rowSlice))
		for j, valRaw := range rowSlice {
			f, err := toFloat64(valRaw)
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", i, j, err)
			}
			row[j] = f
		}
		result[i] = row
	}

	return result, nil
}

// DecodeFloat32Vector converts a decoded output into a vector.
func DecodeFloat32Vector(input interface{}) ([]float32, error) {
	switch v := input.(type) {
	case nil:
		return nil, fmt.Errorf("input is nil")
	case []float32:
		return v, nil
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out, nil
	case []byte:
		var raw []float32
		if err := json.Unmarshal(v, &raw); err != nil {
			return nil, fmt.Errorf("unmarshal json: %w", err)
		}
		return raw, nil
	case []interface{}:
		out := make([]float32, len(v))
		for i, raw := range v {
			f, err := toFloat64(raw)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = float32(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported vector type %T", input)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case json.Number:
		return val.Float64()
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}
