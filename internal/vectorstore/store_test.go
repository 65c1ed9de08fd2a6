package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seanblong/reposearch/pkg/models"
)

func TestSparseDot(t *testing.T) {
	query := map[int32]float32{1: 1.0, 5: 0.5, 9: 2.0}
	doc := &models.SparseVector{Indices: []int32{5, 9, 12}, Values: []float32{2.0, 1.0, 1.0}}

	got := sparseDot(query, doc)
	require.InDelta(t, 3.0, got, 0.0001) // 0.5*2.0 + 2.0*1.0
}

func TestSparseDotNoOverlap(t *testing.T) {
	query := map[int32]float32{1: 1.0}
	doc := &models.SparseVector{Indices: []int32{2, 3}, Values: []float32{1.0, 1.0}}

	require.Zero(t, sparseDot(query, doc))
}

func TestSortResultsDescOrdersByVectorScore(t *testing.T) {
	results := []Result{
		{Chunk: models.Chunk{ID: "low"}, VectorScore: 0.1},
		{Chunk: models.Chunk{ID: "high"}, VectorScore: 0.9},
		{Chunk: models.Chunk{ID: "mid"}, VectorScore: 0.5},
	}

	sortResultsDesc(results)

	require.Equal(t, []string{"high", "mid", "low"}, []string{
		results[0].Chunk.ID, results[1].Chunk.ID, results[2].Chunk.ID,
	})
}

func TestBuildFilterAlwaysScopesToCollection(t *testing.T) {
	where, args := buildFilter(Filter{}, "project_a_dataset_main")
	require.Equal(t, "collection = $1", where)
	require.Equal(t, []any{"project_a_dataset_main"}, args)
}

func TestBuildFilterAppendsEveryClause(t *testing.T) {
	pid := int64(42)
	f := Filter{
		ProjectID:  &pid,
		DatasetIDs: []int64{1, 2, 3},
		Repo:       "org/repo",
		Lang:       "go",
		PathPrefix: "internal/",
		SourceType: "code",
	}

	where, args := buildFilter(f, "c")
	require.Contains(t, where, "project_id = $2")
	require.Contains(t, where, "dataset_id = ANY($3)")
	require.Contains(t, where, "repo = $4")
	require.Contains(t, where, "language = $5")
	require.Contains(t, where, "relative_path LIKE $6")
	require.Contains(t, where, "source_type = $7")
	require.Len(t, args, 7)
	require.Equal(t, "internal/%", args[5])
}

func TestSparseMapBuildsIndexToValue(t *testing.T) {
	v := &models.SparseVector{Indices: []int32{3, 7}, Values: []float32{0.2, 0.8}}
	m := sparseMap(v)
	require.Equal(t, float32(0.2), m[3])
	require.Equal(t, float32(0.8), m[7])
}
