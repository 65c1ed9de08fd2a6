package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seanblong/reposearch/internal/dataset"
	"github.com/seanblong/reposearch/internal/vectorstore"
	"github.com/seanblong/reposearch/pkg/models"
)

type fakeRel struct {
	owned      []int64
	global     []int64
	shared     []int64
	all        []int64
	projectIDs map[string]int64
	names      map[int64]string
	collections []models.Collection
}

func (f *fakeRel) DatasetIDsForProject(ctx context.Context, projectID int64) ([]int64, error) {
	return f.owned, nil
}
func (f *fakeRel) GlobalDatasetIDs(ctx context.Context) ([]int64, error) { return f.global, nil }
func (f *fakeRel) SharedDatasetIDs(ctx context.Context, toProject int64) ([]int64, error) {
	return f.shared, nil
}
func (f *fakeRel) AllDatasetIDs(ctx context.Context) ([]int64, error) { return f.all, nil }
func (f *fakeRel) ProjectIDByName(ctx context.Context, name string) (int64, bool, error) {
	id, ok := f.projectIDs[name]
	return id, ok, nil
}
func (f *fakeRel) ResolveCollectionsFor(ctx context.Context, datasetIDs []int64) ([]models.Collection, error) {
	return f.collections, nil
}
func (f *fakeRel) DatasetNamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		out[id] = f.names[id]
	}
	return out, nil
}

type fakeVec struct {
	searchFunc func(collection string) ([]vectorstore.Result, error)
}

func (f *fakeVec) Search(ctx context.Context, collection string, dense []float32, opts vectorstore.SearchOpts) ([]vectorstore.Result, error) {
	return f.searchFunc(collection)
}
func (f *fakeVec) HybridQuery(ctx context.Context, collection string, dense []float32, sparse *models.SparseVector, opts vectorstore.SearchOpts, dw, sw float64) ([]vectorstore.Result, error) {
	return f.searchFunc(collection)
}

type fakeDense struct {
	vec []float32
	err error
}

func (f fakeDense) Embed(ctx context.Context, text string) ([]float32, error) { return f.vec, f.err }

func TestQueryReturnsEmptyWhenProjectUnknown(t *testing.T) {
	rel := &fakeRel{projectIDs: map[string]int64{}}
	vec := &fakeVec{searchFunc: func(string) ([]vectorstore.Result, error) { return nil, nil }}
	eng := &Engine{Rel: rel, Vec: vec, Dense: fakeDense{vec: []float32{0.1}}, Resolver: dataset.NewResolver()}

	resp, err := eng.Query(context.Background(), Request{Project: "ghost-project", Query: "find me"})
	require.NoError(t, err)
	require.Empty(t, resp.Results)
}

func TestQueryRejectsEmptyQuery(t *testing.T) {
	eng := &Engine{Resolver: dataset.NewResolver()}
	resp, err := eng.Query(context.Background(), Request{Project: "p", Query: "  "})
	require.Error(t, err)
	require.True(t, resp.IsError)
}

func TestQueryAggregatesByMaxScorePerID(t *testing.T) {
	rel := &fakeRel{
		projectIDs:  map[string]int64{"acme": 1},
		owned:       []int64{10, 20},
		names:       map[int64]string{10: "ds-a", 20: "ds-b"},
		collections: []models.Collection{{DatasetID: 10, Name: "col_a"}, {DatasetID: 20, Name: "col_b"}},
	}
	vec := &fakeVec{searchFunc: func(collection string) ([]vectorstore.Result, error) {
		switch collection {
		case "col_a":
			return []vectorstore.Result{{Chunk: models.Chunk{ID: "shared"}, VectorScore: 0.4}}, nil
		case "col_b":
			return []vectorstore.Result{{Chunk: models.Chunk{ID: "shared"}, VectorScore: 0.9}}, nil
		}
		return nil, nil
	}}
	eng := &Engine{
		Rel: rel, Vec: vec,
		Dense:    fakeDense{vec: []float32{0.1, 0.2}},
		Resolver: dataset.NewResolver(),
	}

	resp, err := eng.Query(context.Background(), Request{Project: "acme", Query: "find me", TopK: 5})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.Equal(t, "shared", resp.Results[0].ID)
	require.InDelta(t, 0.9, resp.Results[0].Scores.Vector, 0.0001)
}

func TestQueryFailsFastOnDenseEmbeddingError(t *testing.T) {
	rel := &fakeRel{projectIDs: map[string]int64{"acme": 1}, owned: []int64{10}}
	eng := &Engine{
		Rel: rel, Vec: &fakeVec{searchFunc: func(string) ([]vectorstore.Result, error) { return nil, nil }},
		Dense:    fakeDense{err: errors.New("embedder down")},
		Resolver: dataset.NewResolver(),
	}

	resp, err := eng.Query(context.Background(), Request{Project: "acme", Query: "find me"})
	require.Error(t, err)
	require.True(t, resp.IsError)
}

func TestQueryTrimsToFinalK(t *testing.T) {
	rel := &fakeRel{
		projectIDs:  map[string]int64{"acme": 1},
		owned:       []int64{10},
		names:       map[int64]string{10: "ds-a"},
		collections: []models.Collection{{DatasetID: 10, Name: "col_a"}},
	}
	vec := &fakeVec{searchFunc: func(string) ([]vectorstore.Result, error) {
		return []vectorstore.Result{
			{Chunk: models.Chunk{ID: "a"}, VectorScore: 0.9},
			{Chunk: models.Chunk{ID: "b"}, VectorScore: 0.8},
			{Chunk: models.Chunk{ID: "c"}, VectorScore: 0.7},
		}, nil
	}}
	eng := &Engine{Rel: rel, Vec: vec, Dense: fakeDense{vec: []float32{0.1}}, Resolver: dataset.NewResolver()}

	resp, err := eng.Query(context.Background(), Request{Project: "acme", Query: "find me", TopK: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	require.Equal(t, "a", resp.Results[0].ID)
	require.Equal(t, 2, resp.Metadata.SearchParams.FinalK)
}
