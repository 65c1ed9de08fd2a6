// Package scope implements the Scope / Collection Resolver (spec §4.1): a
// pure function from (scope, project, dataset) to a collection name, plus
// access-set resolution for a calling project.
package scope

import (
	"context"
	"regexp"
	"strings"

	"github.com/seanblong/reposearch/internal/apierr"
)

// Scope is the visibility level a name is resolved for.
type Scope string

const (
	Global  Scope = "global"
	Project Scope = "project"
	Local   Scope = "local"
)

// All is the case-insensitive project sentinel meaning "every project".
const All = "all"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Sanitize lowercases s, replaces any run of non-alphanumeric characters
// with a single underscore, and trims leading/trailing underscores.
// Sanitize is idempotent: Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// IsAllSentinel reports whether project names the "all projects" sentinel,
// case-insensitively.
func IsAllSentinel(project string) bool {
	return strings.EqualFold(strings.TrimSpace(project), All)
}

// ValidateProjectName rejects the reserved "all" sentinel as a literal
// project name; any other sanitized, non-empty name is acceptable.
func ValidateProjectName(name string) error {
	if IsAllSentinel(name) {
		return apierr.Validation(`project name "all" is reserved for the query-time sentinel`)
	}
	if Sanitize(name) == "" {
		return apierr.Validation("project name sanitizes to empty string")
	}
	return nil
}

// NameFor is the pure collection-naming function (spec §4.1 / §6).
//
//	global  -> "global_knowledge"
//	project -> "project_" + sanitize(project)
//	local   -> "project_" + sanitize(project) + "_dataset_" + sanitize(dataset)
func NameFor(s Scope, project, dataset string) string {
	switch s {
	case Global:
		return "global_knowledge"
	case Project:
		return "project_" + Sanitize(project)
	default: // Local
		return "project_" + Sanitize(project) + "_dataset_" + Sanitize(dataset)
	}
}

// DatasetAccessReader is the narrow relational-store view AccessibleDatasets
// needs: the relational gateway (C7) satisfies it.
type DatasetAccessReader interface {
	DatasetIDsForProject(ctx context.Context, projectID int64) ([]int64, error)
	GlobalDatasetIDs(ctx context.Context) ([]int64, error)
	SharedDatasetIDs(ctx context.Context, toProject int64) ([]int64, error)
	AllDatasetIDs(ctx context.Context) ([]int64, error)
	ProjectIDByName(ctx context.Context, name string) (int64, bool, error)
}

// AccessibleDatasets resolves the access set for a caller (spec §4.1):
//
//	project == ALL  -> every dataset id (optionally unioned with global)
//	otherwise       -> owned ∪ (global if includeGlobal) ∪ shared-to-project
//
// Order is stable: owned first, then global, then shared, de-duplicated.
func AccessibleDatasets(ctx context.Context, r DatasetAccessReader, project string, includeGlobal bool) ([]int64, error) {
	if IsAllSentinel(project) {
		ids, err := r.AllDatasetIDs(ctx)
		if err != nil {
			return nil, apierr.Transient("listing all dataset ids", err)
		}
		if includeGlobal {
			return ids, nil
		}
		return ids, nil
	}

	projectID, ok, err := r.ProjectIDByName(ctx, project)
	if err != nil {
		return nil, apierr.Transient("resolving project", err)
	}
	if !ok {
		// Unknown project: queries degrade to an empty access set, not an
		// error (spec §4.1 Failure).
		return nil, nil
	}

	seen := make(map[int64]struct{})
	var out []int64
	add := func(ids []int64) {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	owned, err := r.DatasetIDsForProject(ctx, projectID)
	if err != nil {
		return nil, apierr.Transient("listing owned datasets", err)
	}
	add(owned)

	if includeGlobal {
		global, err := r.GlobalDatasetIDs(ctx)
		if err != nil {
			return nil, apierr.Transient("listing global datasets", err)
		}
		add(global)
	}

	shared, err := r.SharedDatasetIDs(ctx, projectID)
	if err != nil {
		return nil, apierr.Transient("listing shared datasets", err)
	}
	add(shared)

	return out, nil
}
