package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Reranker is the cross-encoder boundary contract (spec §6): scores are
// length-matched with candidates.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// StubReranker returns a deterministic score derived from candidate length
// and query/candidate overlap, useful for tests that need a reranker whose
// output is reproducible without a real model (spec testable property 9:
// "a constant reranker produces a stable, deterministic permutation").
type StubReranker struct{}

func (StubReranker) Rerank(ctx context.Context, query string, candidates []string) ([]float64, error) {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = float64(overlapScore(query, c))
	}
	return scores, nil
}

func overlapScore(query, candidate string) int {
	score := 0
	for i := 0; i < len(query) && i < len(candidate); i++ {
		if query[i] == candidate[i] {
			score++
		}
	}
	return score
}

// HTTPReranker calls a remote cross-encoder endpoint, mirroring the
// teacher's OpenAIClient HTTP idiom.
type HTTPReranker struct {
	Endpoint string
	APIKey   string
	http     *http.Client
}

func NewHTTPReranker(endpoint, apiKey string) *HTTPReranker {
	return &HTTPReranker{Endpoint: endpoint, APIKey: apiKey, http: &http.Client{Timeout: 15 * time.Second}}
}

func (r *HTTPReranker) Rerank(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if r.Endpoint == "" {
		return nil, errors.New("reranker has no endpoint configured")
	}

	payload := map[string]any{"query": query, "candidates": candidates}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.APIKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("reranker non-200 response")
	}

	var out struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Scores) != len(candidates) {
		return nil, errors.New("reranker returned mismatched score count")
	}
	return out.Scores, nil
}
