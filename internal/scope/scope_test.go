package scope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"My-App.v2":    "my_app_v2",
		"GitHub Main":  "github_main",
		"--leading--":  "leading",
		"already_ok":   "already_ok",
		"Mixed__Case!": "mixed_case",
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitize(in), "Sanitize(%q)", in)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{"My-App.v2", "already_ok", "!!!", "a--b__c"}
	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		assert.Equal(t, once, twice, "Sanitize not idempotent for %q", in)
	}
}

func TestNameFor(t *testing.T) {
	assert.Equal(t, "global_knowledge", NameFor(Global, "", ""))
	assert.Equal(t, "project_my_app_v2", NameFor(Project, "My-App.v2", ""))
	assert.Equal(t, "project_my_app_v2_dataset_github_main", NameFor(Local, "My-App.v2", "GitHub Main"))
}

func TestValidateProjectNameRejectsAllSentinel(t *testing.T) {
	require.Error(t, ValidateProjectName("all"))
	require.Error(t, ValidateProjectName("ALL"))
	require.NoError(t, ValidateProjectName("my-project"))
}

type fakeReader struct {
	owned, global, shared, all []int64
	projectID                  int64
	projectFound               bool
}

func (f *fakeReader) DatasetIDsForProject(ctx context.Context, projectID int64) ([]int64, error) {
	return f.owned, nil
}
func (f *fakeReader) GlobalDatasetIDs(ctx context.Context) ([]int64, error) { return f.global, nil }
func (f *fakeReader) SharedDatasetIDs(ctx context.Context, toProject int64) ([]int64, error) {
	return f.shared, nil
}
func (f *fakeReader) AllDatasetIDs(ctx context.Context) ([]int64, error) { return f.all, nil }
func (f *fakeReader) ProjectIDByName(ctx context.Context, name string) (int64, bool, error) {
	return f.projectID, f.projectFound, nil
}

func TestAccessibleDatasetsUnion(t *testing.T) {
	r := &fakeReader{
		owned: []int64{1, 2}, global: []int64{2, 3}, shared: []int64{4},
		projectID: 10, projectFound: true,
	}
	ids, err := AccessibleDatasets(context.Background(), r, "myproj", true)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, ids)
}

func TestAccessibleDatasetsUnknownProjectIsEmpty(t *testing.T) {
	r := &fakeReader{projectFound: false}
	ids, err := AccessibleDatasets(context.Background(), r, "ghost", true)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAccessibleDatasetsAllSentinel(t *testing.T) {
	r := &fakeReader{all: []int64{1, 2, 3}}
	ids, err := AccessibleDatasets(context.Background(), r, "ALL", true)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
}
