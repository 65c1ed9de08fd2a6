// Package embed implements the Embedding Coordinator (spec §4.5): batched
// dense + sparse embedding with bounded concurrency, backpressure, and
// failure isolation (a failing sparse path never fails the dense path).
package embed

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/reposearch/internal/apierr"
	"github.com/seanblong/reposearch/internal/chunk"
	"github.com/seanblong/reposearch/pkg/models"
)

// DenseEmbedder is the boundary contract for the primary encoder (spec §6).
type DenseEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// SparseEncoder is the boundary contract for the learned sparse encoder.
type SparseEncoder interface {
	ComputeSparseBatch(ctx context.Context, texts []string) ([]*models.SparseVector, error)
	IsEnabled() bool
}

// Config tunes batching and concurrency (spec §6 knobs).
type Config struct {
	BatchSize            int
	MaxConcurrentBatches int64
	MaxChunksPerJob       int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxConcurrentBatches <= 0 {
		c.MaxConcurrentBatches = 1
	}
	if c.MaxChunksPerJob <= 0 {
		c.MaxChunksPerJob = 450_000
	}
	return c
}

// Coordinator batches chunk embedding requests under a semaphore-bounded
// concurrency gate, dispatching dense and sparse computation concurrently
// per batch via errgroup so a sparse failure never fails the dense result.
type Coordinator struct {
	dense  DenseEmbedder
	sparse SparseEncoder
	cfg    Config
	sem    *semaphore.Weighted

	jobChunks int // chunks admitted so far in the current job; reset via NewJobCounter
}

// NewCoordinator builds a Coordinator bounding in-flight batches at
// cfg.MaxConcurrentBatches (spec §4.5 / §5).
func NewCoordinator(dense DenseEmbedder, sparse SparseEncoder, cfg Config) *Coordinator {
	cfg = cfg.withDefaults()
	return &Coordinator{
		dense:  dense,
		sparse: sparse,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrentBatches),
	}
}

// BatchResult is one chunk's embedding outcome, aligned by index with the
// input slice.
type BatchResult struct {
	Dense  []float32
	Sparse *models.SparseVector
}

// EmbedBatch embeds one batch of chunks, running dense and (optionally)
// sparse computation concurrently. It blocks on the coordinator's semaphore
// so at most cfg.MaxConcurrentBatches batches are in flight across all
// concurrent callers/jobs (spec §5 "Backpressure").
func (c *Coordinator) EmbedBatch(ctx context.Context, chunks []chunk.Chunk, wantSparse bool) ([]BatchResult, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, apierr.Cancelled("waiting for embed batch slot")
	}
	defer c.sem.Release(1)

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}

	results := make([]BatchResult, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dense, err := c.dense.EmbedBatch(gctx, texts)
		if err != nil {
			return apierr.Transient("dense embedding failed", err)
		}
		if len(dense) != len(texts) {
			return apierr.Permanent("dense embedder returned mismatched length")
		}
		for i, v := range dense {
			results[i].Dense = v
		}
		return nil
	})

	if wantSparse && c.sparse != nil && c.sparse.IsEnabled() {
		g.Go(func() error {
			sparse, err := c.sparse.ComputeSparseBatch(gctx, texts)
			if err != nil {
				// Sparse failure degrades silently; it must never fail the
				// dense path (spec §4.5).
				log.Warn().Err(err).Msg("sparse embedding failed, degrading to dense-only")
				return nil
			}
			for i := range sparse {
				if i < len(results) {
					results[i].Sparse = sparse[i]
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// JobBudget tracks the hard per-job chunk cap (spec §4.5: default 450,000,
// stops ingest with status=limit_reached rather than failed).
type JobBudget struct {
	max     int
	admitted int
}

// NewJobBudget creates a JobBudget honoring cfg's MaxChunksPerJob.
func NewJobBudget(cfg Config) *JobBudget {
	cfg = cfg.withDefaults()
	return &JobBudget{max: cfg.MaxChunksPerJob}
}

// Admit records n more chunks against the budget, returning
// apierr.ErrLimitReached once the cap would be exceeded.
func (b *JobBudget) Admit(n int) error {
	if b.admitted+n > b.max {
		return apierr.ErrLimitReached
	}
	b.admitted += n
	return nil
}

func (b *JobBudget) Admitted() int { return b.admitted }
