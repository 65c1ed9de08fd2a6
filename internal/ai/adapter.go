package ai

import (
	"context"

	"github.com/seanblong/reposearch/pkg/models"
)

// DenseAdapter bridges the synchronous Client interface (used directly by
// the search/indexer packages the teacher shipped) to the
// embed.DenseEmbedder contract the coordinator depends on, without either
// package importing the other's concrete types.
type DenseAdapter struct {
	Client Client
}

func (a DenseAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return a.Client.EmbedBatch(texts)
}

// Embed bridges a single-text query embed call to the query engine's
// DenseEmbedder contract.
func (a DenseAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return a.Client.Embed(text)
}

// SparseAdapter bridges SparseEncoder to the embed package's narrower
// contract, which only needs batch computation plus an enabled check.
type SparseAdapter struct {
	Encoder SparseEncoder
}

func (a SparseAdapter) IsEnabled() bool { return a.Encoder != nil && a.Encoder.IsEnabled() }

func (a SparseAdapter) ComputeSparseBatch(ctx context.Context, texts []string) ([]*models.SparseVector, error) {
	if a.Encoder == nil {
		return nil, nil
	}
	return a.Encoder.ComputeSparseBatch(ctx, texts)
}
