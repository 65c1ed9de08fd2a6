// Package change implements the Change Detector (spec §4.4): a filesystem
// walk filtered by extension allowlist and merged ignore patterns, with
// content-hash comparison against the indexed_files bookkeeping to classify
// files as new/modified/deleted/unchanged.
package change

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/seanblong/reposearch/pkg/models"
)

// Report is the full classification of a tree against the indexed state.
type Report struct {
	New       []string
	Modified  []string
	Deleted   []string
	Unchanged []string
	Stats     Stats
}

// Stats summarizes a Report for checkIndex-style consumers.
type Stats struct {
	TotalFiles    int
	IndexedFiles  int
	UnchangedFiles int
	NewFiles      int
	ModifiedFiles int
	DeletedFiles  int
}

// PercentIndexed returns the fraction (0-100) of total files already
// reflected unchanged in the index.
func (s Stats) PercentIndexed() float64 {
	if s.TotalFiles == 0 {
		return 100
	}
	return 100 * float64(s.UnchangedFiles) / float64(s.TotalFiles)
}

// Recommendation is checkIndex's verdict (spec §4.4/§4.10).
type Recommendation string

const (
	RecommendSkip        Recommendation = "skip"
	RecommendIncremental  Recommendation = "incremental"
	RecommendFullReindex  Recommendation = "full-reindex"
)

// Recommend classifies a Report per spec §4.4's thresholds: skip when
// nothing changed, incremental when >70% unchanged and <50 files changed,
// full-reindex otherwise.
func Recommend(r Report) Recommendation {
	changed := len(r.New) + len(r.Modified) + len(r.Deleted)
	if changed == 0 {
		return RecommendSkip
	}
	total := changed + len(r.Unchanged)
	if total == 0 {
		return RecommendFullReindex
	}
	pctUnchanged := 100 * float64(len(r.Unchanged)) / float64(total)
	if pctUnchanged > 70 && changed < 50 {
		return RecommendIncremental
	}
	return RecommendFullReindex
}

// IgnoreSet is a merged set of ignore glob patterns (spec §4.4): built-in
// defaults, any `.*ignore` files discovered in the tree, and an optional
// global ignore file.
type IgnoreSet struct {
	patterns []string
}

var defaultIgnorePatterns = []string{
	".git", ".hg", ".svn",
	"node_modules", "vendor", "target", "build", "dist", "out", "bin", "obj",
	".venv", "venv", "__pycache__", ".pytest_cache", ".gradle", ".m2",
	".idea", ".vscode", "coverage", ".cache", ".terraform",
}

// BuildIgnoreSet merges defaults with any `.*ignore` files found under root
// and an optional global ignore file path.
func BuildIgnoreSet(root, globalIgnorePath string) (IgnoreSet, error) {
	set := IgnoreSet{patterns: append([]string(nil), defaultIgnorePatterns...)}

	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de != nil && de.IsDir() {
				return nil
			}
			name := filepath.Base(path)
			if strings.HasSuffix(name, "ignore") && strings.Contains(name, ".") {
				if lines, err := readIgnoreFile(path); err == nil {
					set.patterns = append(set.patterns, lines...)
				}
			}
			return nil
		},
	})
	if err != nil {
		return set, err
	}

	if globalIgnorePath != "" {
		if lines, err := readIgnoreFile(globalIgnorePath); err == nil {
			set.patterns = append(set.patterns, lines...)
		}
	}
	return set, nil
}

func readIgnoreFile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

// Matches reports whether relPath should be ignored.
func (s IgnoreSet) Matches(relPath string) bool {
	p := filepath.ToSlash(relPath)
	for _, pat := range s.patterns {
		pat = strings.TrimSuffix(pat, "/")
		if pat == "" {
			continue
		}
		if strings.Contains(p, "/"+pat+"/") || strings.HasPrefix(p, pat+"/") || p == pat {
			return true
		}
		if ok, _ := filepath.Match(pat, filepath.Base(p)); ok {
			return true
		}
	}
	return false
}

// HashFile returns a stable content digest for a file.
func HashFile(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// Detect walks root, filtering by extAllow (nil/empty means all extensions)
// and ignore, hashing candidates and classifying them against indexed
// (keyed by relative path) per spec §4.4.
func Detect(ctx context.Context, root string, extAllow []string, ignore IgnoreSet, indexed map[string]models.IndexedFile) (Report, error) {
	allow := make(map[string]struct{}, len(extAllow))
	for _, e := range extAllow {
		allow[strings.ToLower(e)] = struct{}{}
	}

	seen := make(map[string]struct{}, len(indexed))
	var report Report

	walkErr := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if de != nil && de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)

			if ignore.Matches(rel) {
				return nil
			}
			if len(allow) > 0 {
				if _, ok := allow[strings.ToLower(filepath.Ext(path))]; !ok {
					return nil
				}
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			hash := HashFile(content)
			seen[rel] = struct{}{}

			prior, found := indexed[rel]
			switch {
			case !found:
				report.New = append(report.New, rel)
			case prior.ContentHash != hash:
				report.Modified = append(report.Modified, rel)
			default:
				report.Unchanged = append(report.Unchanged, rel)
			}
			return nil
		},
	})
	if walkErr != nil {
		return report, walkErr
	}

	for rel := range indexed {
		if _, ok := seen[rel]; !ok {
			report.Deleted = append(report.Deleted, rel)
		}
	}

	report.Stats = Stats{
		TotalFiles:     len(seen),
		IndexedFiles:   len(indexed),
		UnchangedFiles: len(report.Unchanged),
		NewFiles:       len(report.New),
		ModifiedFiles:  len(report.Modified),
		DeletedFiles:   len(report.Deleted),
	}
	return report, nil
}
