package change

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/seanblong/reposearch/pkg/models"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestDetectClassifiesFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a")
	writeFile(t, dir, "b.go", "package b")

	indexed := map[string]models.IndexedFile{
		"b.go": {RelativePath: "b.go", ContentHash: HashFile([]byte("old content"))},
		"c.go": {RelativePath: "c.go", ContentHash: "whatever"},
	}

	report, err := Detect(context.Background(), dir, []string{".go"}, IgnoreSet{}, indexed)
	require.NoError(t, err)

	require.Contains(t, report.New, "a.go")
	require.Contains(t, report.Modified, "b.go")
	require.Contains(t, report.Deleted, "c.go")
	require.Empty(t, report.Unchanged)
}

func TestDetectUnchangedAfterReindex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a")

	content, err := os.ReadFile(filepath.Join(dir, "a.go"))
	require.NoError(t, err)
	hash := HashFile(content)

	indexed := map[string]models.IndexedFile{"a.go": {RelativePath: "a.go", ContentHash: hash}}
	report, err := Detect(context.Background(), dir, nil, IgnoreSet{}, indexed)
	require.NoError(t, err)

	require.Equal(t, []string{"a.go"}, report.Unchanged)
	require.Empty(t, report.New)
	require.Empty(t, report.Modified)
	require.Empty(t, report.Deleted)
	require.Equal(t, RecommendSkip, Recommend(report))
}

func TestRecommendThresholds(t *testing.T) {
	unchanged := make([]string, 80)
	modified := make([]string, 10)
	require.Equal(t, RecommendIncremental, Recommend(Report{Unchanged: unchanged, Modified: modified}))

	manyChanged := make([]string, 60)
	require.Equal(t, RecommendFullReindex, Recommend(Report{Unchanged: unchanged, Modified: manyChanged}))
}

func TestIgnoreSetMatchesDirectories(t *testing.T) {
	set := IgnoreSet{}
	set.patterns = append(set.patterns, defaultIgnorePatterns...)
	require.True(t, set.Matches("node_modules/leftpad/index.js"))
	require.False(t, set.Matches("src/node_modules_helper.go"))
}
