package status

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seanblong/reposearch/internal/change"
	"github.com/seanblong/reposearch/pkg/models"
)

type fakeRel struct {
	indexed map[string]models.IndexedFile
}

func (f *fakeRel) GetOrCreateProject(ctx context.Context, name string) (int64, error) { return 1, nil }
func (f *fakeRel) GetOrCreateDataset(ctx context.Context, projectID *int64, name string) (int64, error) {
	return 1, nil
}
func (f *fakeRel) IndexedFilesFor(ctx context.Context, datasetID int64) (map[string]models.IndexedFile, error) {
	return f.indexed, nil
}

func TestCheckIndexNotIndexedWhenNoFilesRecorded(t *testing.T) {
	dir := t.TempDir()
	svc := &Service{Rel: &fakeRel{indexed: map[string]models.IndexedFile{}}}

	st, err := svc.CheckIndex(context.Background(), dir, "acme", "main", false)
	require.NoError(t, err)
	require.False(t, st.IsIndexed)
	require.Equal(t, change.RecommendFullReindex, st.Recommendation)
}

func TestCheckIndexSkipWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))

	content, err := os.ReadFile(filepath.Join(dir, "main.go"))
	require.NoError(t, err)

	svc := &Service{Rel: &fakeRel{indexed: map[string]models.IndexedFile{
		"main.go": {RelativePath: "main.go", ContentHash: change.HashFile(content), LastIndexedAt: time.Now()},
	}}}

	st, err := svc.CheckIndex(context.Background(), dir, "acme", "main", true)
	require.NoError(t, err)
	require.True(t, st.IsIndexed)
	require.True(t, st.IsFullyIndexed)
	require.Equal(t, change.RecommendSkip, st.Recommendation)
	require.Empty(t, st.Details)
}

func TestCheckIndexDetailsTruncatedToTen(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 15; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "f"+string(rune('a'+i))+".go"), []byte("package main"), 0o644))
	}

	svc := &Service{Rel: &fakeRel{indexed: map[string]models.IndexedFile{
		"preexisting.go": {RelativePath: "preexisting.go", ContentHash: "stale", LastIndexedAt: time.Now()},
	}}}

	st, err := svc.CheckIndex(context.Background(), dir, "acme", "main", true)
	require.NoError(t, err)
	newCount := 0
	for _, d := range st.Details {
		if d.Kind == "new" {
			newCount++
		}
	}
	require.LessOrEqual(t, newCount, 10)
}
