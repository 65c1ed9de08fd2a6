package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/seanblong/reposearch/pkg/models"
)

// SparseEncoder is the boundary contract for the learned sparse encoder
// (spec §6). Implementations mirror the teacher's OpenAIClient HTTP idiom.
type SparseEncoder interface {
	ComputeSparse(ctx context.Context, text string) (*models.SparseVector, error)
	ComputeSparseBatch(ctx context.Context, texts []string) ([]*models.SparseVector, error)
	IsEnabled() bool
}

// NoopSparseEncoder disables the sparse path entirely; callers degrade to
// dense-only search, matching ENABLE_HYBRID_SEARCH=false (spec §6).
type NoopSparseEncoder struct{}

func (NoopSparseEncoder) IsEnabled() bool { return false }
func (NoopSparseEncoder) ComputeSparse(ctx context.Context, text string) (*models.SparseVector, error) {
	return nil, errors.New("sparse encoding disabled")
}
func (NoopSparseEncoder) ComputeSparseBatch(ctx context.Context, texts []string) ([]*models.SparseVector, error) {
	return nil, errors.New("sparse encoding disabled")
}

// HTTPSparseEncoder calls a remote sparse-embedding endpoint (e.g. a
// SPLADE-style service) returning {indices[],values[]} per text.
type HTTPSparseEncoder struct {
	Endpoint string
	APIKey   string
	http     *http.Client
}

// NewHTTPSparseEncoder creates an encoder pointed at endpoint.
func NewHTTPSparseEncoder(endpoint, apiKey string) *HTTPSparseEncoder {
	return &HTTPSparseEncoder{
		Endpoint: endpoint,
		APIKey:   apiKey,
		http:     &http.Client{Timeout: 20 * time.Second},
	}
}

func (e *HTTPSparseEncoder) IsEnabled() bool { return e.Endpoint != "" }

func (e *HTTPSparseEncoder) ComputeSparse(ctx context.Context, text string) (*models.SparseVector, error) {
	out, err := e.ComputeSparseBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("no sparse vector returned")
	}
	return out[0], nil
}

func (e *HTTPSparseEncoder) ComputeSparseBatch(ctx context.Context, texts []string) ([]*models.SparseVector, error) {
	if !e.IsEnabled() {
		return nil, errors.New("sparse encoder has no endpoint configured")
	}

	payload := map[string]any{"inputs": texts}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("sparse encoder non-200 response")
	}

	var out struct {
		Vectors []struct {
			Indices []int32   `json:"indices"`
			Values  []float32 `json:"values"`
		} `json:"vectors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	result := make([]*models.SparseVector, len(out.Vectors))
	for i, v := range out.Vectors {
		result[i] = &models.SparseVector{Indices: v.Indices, Values: v.Values}
	}
	return result, nil
}
