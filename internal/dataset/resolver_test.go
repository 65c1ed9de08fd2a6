package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var available = []string{
	"local", "github-main", "github-dev", "docs", "api-prod", "api-dev",
	"app-v1", "app-v2", "app-v3-rc",
}

func TestResolveEmptySelectorReturnsAvailable(t *testing.T) {
	r := NewResolver()
	res := r.Resolve(nil, available)
	assert.Equal(t, available, res.Names)
	assert.False(t, res.Empty)
}

func TestResolveStarReturnsAvailable(t *testing.T) {
	r := NewResolver()
	res := r.Resolve(NewSelector("*"), available)
	assert.ElementsMatch(t, available, res.Names)
}

func TestResolveExactMatch(t *testing.T) {
	r := NewResolver()
	res := r.Resolve(NewSelector("docs"), available)
	assert.Equal(t, []string{"docs"}, res.Names)
}

func TestResolveGlob(t *testing.T) {
	r := NewResolver()
	res := r.Resolve(NewSelector("api-*"), available)
	assert.Equal(t, []string{"api-prod", "api-dev"}, res.Names)
}

func TestResolveCharRange(t *testing.T) {
	r := NewResolver()
	res := r.Resolve(NewSelector("app-v[1-2]"), available)
	assert.Equal(t, []string{"app-v1", "app-v2"}, res.Names)
}

func TestResolveAliasEnvDev(t *testing.T) {
	r := NewResolver()
	res := r.Resolve(NewSelector("env:dev"), available)
	assert.Equal(t, []string{"github-dev", "api-dev"}, res.Names)
}

func TestResolveCompositeSelectorMatchesWorkedScenario(t *testing.T) {
	r := NewResolver()
	res := r.Resolve(NewSelector("env:dev", "src:docs", "ver:latest"), available)
	assert.Equal(t, []string{"github-dev", "api-dev", "docs", "app-v2"}, res.Names)
}

func TestResolveVerLatestExcludesUnstable(t *testing.T) {
	r := NewResolver()
	res := r.Resolve(NewSelector("ver:latest"), []string{"app-v1", "app-v2", "app-v3-rc"})
	assert.Equal(t, []string{"app-v2"}, res.Names)
}

func TestResolveVerLatestExcludesUnversionedNames(t *testing.T) {
	r := NewResolver()
	res := r.Resolve(NewSelector("ver:latest"), available)
	assert.Equal(t, []string{"app-v2"}, res.Names)
}

func TestResolveVerStableUnstable(t *testing.T) {
	r := NewResolver()
	stable := r.Resolve(NewSelector("ver:stable"), available)
	assert.NotContains(t, stable.Names, "app-v3-rc")

	unstable := r.Resolve(NewSelector("ver:unstable"), available)
	assert.Equal(t, []string{"app-v3-rc"}, unstable.Names)
}

func TestResolveOrderPreservingDeduped(t *testing.T) {
	r := NewResolver()
	res := r.Resolve(NewSelector("github-dev", "env:dev"), available)
	// github-dev appears once even though env:dev would also match it.
	assert.Equal(t, []string{"github-dev", "api-dev"}, res.Names)
}

func TestResolveEmptyYieldsDiagnostics(t *testing.T) {
	r := NewResolver()
	res := r.Resolve(NewSelector("nonexistent-*"), available)
	assert.True(t, res.Empty)
	assert.NotEmpty(t, res.Reason)
	assert.NotEmpty(t, res.DidYouMean)
	assert.LessOrEqual(t, len(res.Examples), 5)
}

func TestResolveIsSubsetOfAvailable(t *testing.T) {
	r := NewResolver()
	res := r.Resolve(NewSelector("*", "env:prod"), available)
	availSet := make(map[string]struct{}, len(available))
	for _, a := range available {
		availSet[a] = struct{}{}
	}
	for _, n := range res.Names {
		_, ok := availSet[n]
		assert.True(t, ok, "%q not in available", n)
	}
}

func TestGlobToRegexEscapesMetacharacters(t *testing.T) {
	r := NewResolver()
	res := r.Resolve(NewSelector("app.v1"), []string{"app.v1", "appXv1"})
	// literal dot must not match any character
	assert.Equal(t, []string{"app.v1"}, res.Names)
}
