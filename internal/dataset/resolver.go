// Package dataset implements the Dataset Pattern Resolver (spec §4.2):
// expansion of a user dataset selector (single/array/wildcard/glob/
// semantic-alias) into a concrete, ordered, deduplicated set of dataset
// names drawn from an "available" set supplied by the caller.
package dataset

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Selector is the caller-supplied dataset selection: nil/empty means "all
// available", a single string is one token, a slice is evaluated in order.
type Selector []string

// NewSelector builds a Selector from a possibly-nil/empty value so callers
// don't need to special-case the None case themselves.
func NewSelector(tokens ...string) Selector { return Selector(tokens) }

// Resolution is the output of Resolve: the ordered, deduplicated dataset
// names plus empty-result diagnostics (spec §4.2 "Diagnostics").
type Resolution struct {
	Names      []string
	Empty      bool
	Reason     string
	DidYouMean []string
	Examples   []string
}

// aliasPatterns is the closed, verbatim semantic-alias table from spec §4.2.
// ver:latest and ver:stable/unstable are function-shaped and handled
// separately in resolveAlias.
var aliasPatterns = map[string][]string{
	"env:dev":         {"*-dev", "*-development", "*-staging", "dev-*", "development-*", "staging-*"},
	"env:prod":        {"*-prod", "*-production", "*-live", "prod-*", "production-*", "live-*"},
	"env:test":        {"*-test", "*-testing", "*-qa", "test-*", "testing-*", "qa-*"},
	"env:staging":     {"*-staging", "*-stage", "staging-*", "stage-*"},
	"src:code":        {"local", "github-*", "gitlab-*", "bitbucket-*"},
	"src:docs":        {"docs", "documentation", "*-docs", "wiki", "*-wiki", "readme", "*-readme"},
	"src:api":         {"api-*", "*-api", "api-docs", "api-ref", "swagger", "openapi"},
	"src:web":         {"crawl-*", "web-*", "*-crawl", "*-web", "site-*"},
	"src:db":          {"db-*", "*-db", "database-*", "*-database", "sql-*"},
	"src:external":    {"external-*", "third-party-*", "vendor-*", "integration-*"},
	"branch:main":     {"*-main", "*-master", "main-*", "master-*", "main", "master"},
	"branch:feature":  {"*-feature-*", "feature-*", "*-feat-*", "feat-*"},
	"branch:hotfix":   {"*-hotfix-*", "hotfix-*", "*-patch-*", "patch-*"},
	"branch:release":  {"*-release-*", "release-*", "*-rel-*", "rel-*"},
}

var unstableMarkers = []string{"alpha", "beta", "rc", "dev"}

// Resolver resolves selectors against an available set, caching compiled
// glob regexes (selector-invariant) in a bounded LRU. It must NOT memoize
// anything that depends on `available`, since that set changes between
// calls (spec §9 "pattern resolver must not memoize across calls").
type Resolver struct {
	globCache *lru.Cache[string, *regexp.Regexp]
}

// NewResolver creates a Resolver with a bounded glob-compilation cache.
func NewResolver() *Resolver {
	c, _ := lru.New[string, *regexp.Regexp](256)
	return &Resolver{globCache: c}
}

// Resolve expands selector against available (spec §4.2).
func (r *Resolver) Resolve(selector Selector, available []string) Resolution {
	if len(selector) == 0 {
		return Resolution{Names: dedupOrdered(available)}
	}

	seen := make(map[string]struct{}, len(available))
	var out []string
	appendName := func(n string) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}

	for _, token := range selector {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if token == "*" {
			for _, a := range available {
				appendName(a)
			}
			continue
		}
		if expansion, ok := r.resolveAlias(token, available); ok {
			for _, n := range expansion {
				appendName(n)
			}
			continue
		}
		if isGlobToken(token) {
			for _, a := range available {
				if r.globMatch(token, a) {
					appendName(a)
				}
			}
			continue
		}
		for _, a := range available {
			if a == token {
				appendName(a)
			}
		}
	}

	if len(out) == 0 {
		return r.emptyDiagnostics(selector, available)
	}
	return Resolution{Names: out}
}

func (r *Resolver) emptyDiagnostics(selector Selector, available []string) Resolution {
	examples := available
	if len(examples) > 5 {
		examples = examples[:5]
	}
	var mean []string
	for alias := range aliasPatterns {
		mean = append(mean, alias)
	}
	mean = append(mean, "ver:latest", "ver:stable", "ver:unstable")
	sort.Strings(mean)

	return Resolution{
		Empty:      true,
		Reason:     fmt.Sprintf("selector %v matched nothing in the available set", []string(selector)),
		DidYouMean: mean,
		Examples:   append([]string(nil), examples...),
	}
}

// resolveAlias expands a semantic alias token; ok is false if token is not
// a recognized alias.
func (r *Resolver) resolveAlias(token string, available []string) ([]string, bool) {
	switch token {
	case "ver:latest":
		return latestPerFamily(available), true
	case "ver:stable":
		var out []string
		for _, a := range available {
			if !containsAny(a, unstableMarkers) {
				out = append(out, a)
			}
		}
		return out, true
	case "ver:unstable":
		var out []string
		for _, a := range available {
			if containsAny(a, unstableMarkers) {
				out = append(out, a)
			}
		}
		return out, true
	}

	patterns, ok := aliasPatterns[token]
	if !ok {
		return nil, false
	}
	seen := make(map[string]struct{})
	var out []string
	for _, p := range patterns {
		for _, a := range available {
			if isGlobToken(p) {
				if r.globMatch(p, a) {
					if _, dup := seen[a]; !dup {
						seen[a] = struct{}{}
						out = append(out, a)
					}
				}
			} else if p == a {
				if _, dup := seen[a]; !dup {
					seen[a] = struct{}{}
					out = append(out, a)
				}
			}
		}
	}
	return out, true
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// versionSuffix matches a trailing -vN[.M[.P]] (or bare -N) family suffix.
var versionSuffix = regexp.MustCompile(`-v?\d+(?:\.\d+){0,2}$`)

// latestPerFamily groups available names that actually carry a trailing
// -vN[.M[.P]] version suffix by their name with that suffix stripped, then
// keeps the lexicographically-highest stable (non alpha/beta/rc/dev) member
// of each family (spec §4.2 ver:latest). Names without a version suffix are
// not a "family of one" — they're unversioned and excluded from ver:latest
// entirely, matching spec §8's worked scenario S2 where non-versioned
// datasets (e.g. "local", "docs") only ever reach the result through other
// selector tokens, never through ver:latest itself.
// Sorting is lexical on the suffix string, not semver-aware (spec §9 open
// question) — callers relying on numeric ordering must zero-pad versions.
func latestPerFamily(available []string) []string {
	families := make(map[string][]string)
	var order []string
	for _, a := range available {
		if !versionSuffix.MatchString(a) {
			continue
		}
		family := versionSuffix.ReplaceAllString(a, "")
		if _, ok := families[family]; !ok {
			order = append(order, family)
		}
		families[family] = append(families[family], a)
	}

	var out []string
	for _, family := range order {
		members := families[family]
		best := ""
		for _, m := range members {
			if containsAny(m, unstableMarkers) {
				continue
			}
			if m > best {
				best = m
			}
		}
		if best != "" {
			out = append(out, best)
		}
	}
	return out
}

func isGlobToken(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// globMatch compiles (with caching) and matches a glob-with-char-range
// pattern against a candidate name (spec §4.2 rules 4/5).
func (r *Resolver) globMatch(pattern, candidate string) bool {
	re := r.compileGlob(pattern)
	if re == nil {
		return false
	}
	return re.MatchString(candidate)
}

func (r *Resolver) compileGlob(pattern string) *regexp.Regexp {
	if r.globCache != nil {
		if cached, ok := r.globCache.Get(pattern); ok {
			return cached
		}
	}
	re, err := regexp.Compile("^" + globToRegex(pattern) + "$")
	if err != nil {
		return nil
	}
	if r.globCache != nil {
		r.globCache.Add(pattern, re)
	}
	return re
}

// globToRegex escapes regex metacharacters then translates glob wildcards:
// '*' -> '.*', '?' -> '.', and passes character ranges like [a-z]/[0-9]
// through unescaped.
func globToRegex(pattern string) string {
	var b strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			b.WriteString(".*")
			i++
		case '?':
			b.WriteString(".")
			i++
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
				continue
			}
			b.WriteString(pattern[i : i+end+1])
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String()
}

func dedupOrdered(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
