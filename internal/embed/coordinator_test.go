package embed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanblong/reposearch/internal/apierr"
	"github.com/seanblong/reposearch/internal/chunk"
	"github.com/seanblong/reposearch/pkg/models"
)

type fakeDense struct {
	fn func([]string) ([][]float32, error)
}

func (f *fakeDense) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.fn != nil {
		return f.fn(texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

type fakeSparse struct {
	enabled bool
	fn      func([]string) ([]*models.SparseVector, error)
}

func (f *fakeSparse) IsEnabled() bool { return f.enabled }
func (f *fakeSparse) ComputeSparseBatch(ctx context.Context, texts []string) ([]*models.SparseVector, error) {
	if f.fn != nil {
		return f.fn(texts)
	}
	out := make([]*models.SparseVector, len(texts))
	for i := range texts {
		out[i] = &models.SparseVector{Indices: []int32{1}, Values: []float32{0.5}}
	}
	return out, nil
}

func chunksN(n int) []chunk.Chunk {
	out := make([]chunk.Chunk, n)
	for i := range out {
		out[i] = chunk.Chunk{Content: "x"}
	}
	return out
}

func TestEmbedBatchDenseAndSparse(t *testing.T) {
	c := NewCoordinator(&fakeDense{}, &fakeSparse{enabled: true}, Config{})
	res, err := c.EmbedBatch(context.Background(), chunksN(3), true)
	require.NoError(t, err)
	require.Len(t, res, 3)
	for _, r := range res {
		assert.Equal(t, []float32{1, 2, 3}, r.Dense)
		require.NotNil(t, r.Sparse)
	}
}

func TestEmbedBatchSparseFailureDegrades(t *testing.T) {
	sparse := &fakeSparse{enabled: true, fn: func(s []string) ([]*models.SparseVector, error) {
		return nil, errors.New("sparse backend down")
	}}
	c := NewCoordinator(&fakeDense{}, sparse, Config{})
	res, err := c.EmbedBatch(context.Background(), chunksN(2), true)
	require.NoError(t, err)
	for _, r := range res {
		assert.NotNil(t, r.Dense)
		assert.Nil(t, r.Sparse)
	}
}

func TestEmbedBatchDenseFailureIsFatal(t *testing.T) {
	dense := &fakeDense{fn: func(s []string) ([][]float32, error) {
		return nil, errors.New("dense backend down")
	}}
	c := NewCoordinator(dense, &fakeSparse{}, Config{})
	_, err := c.EmbedBatch(context.Background(), chunksN(2), false)
	require.Error(t, err)
	assert.Equal(t, apierr.KindTransient, apierr.KindOf(err))
}

func TestConcurrencyBoundNeverExceeded(t *testing.T) {
	var inFlight, maxSeen int32
	dense := &fakeDense{fn: func(texts []string) ([][]float32, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxSeen)
			if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		out := make([][]float32, len(texts))
		return out, nil
	}}
	c := NewCoordinator(dense, &fakeSparse{}, Config{MaxConcurrentBatches: 2})

	done := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, _ = c.EmbedBatch(context.Background(), chunksN(1), false)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}
	assert.LessOrEqual(t, int(atomic.LoadInt32(&maxSeen)), 2)
}

func TestJobBudgetLimitReached(t *testing.T) {
	b := NewJobBudget(Config{MaxChunksPerJob: 10})
	require.NoError(t, b.Admit(5))
	require.NoError(t, b.Admit(5))
	err := b.Admit(1)
	require.ErrorIs(t, err, apierr.ErrLimitReached)
}
