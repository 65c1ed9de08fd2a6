// Package status implements the Index-Status Service (C10, spec §4.10):
// reports whether a codebase path is indexed for a given project/dataset,
// and if not fully, what the change detector recommends.
package status

import (
	"context"

	"github.com/seanblong/reposearch/internal/change"
	"github.com/seanblong/reposearch/pkg/models"
)

// RelStore is the narrow relational view the status service needs.
type RelStore interface {
	GetOrCreateProject(ctx context.Context, name string) (int64, error)
	GetOrCreateDataset(ctx context.Context, projectID *int64, name string) (int64, error)
	IndexedFilesFor(ctx context.Context, datasetID int64) (map[string]models.IndexedFile, error)
}

// Stats mirrors the JSON shape in spec §6 ("Index-status response").
type Stats struct {
	TotalFiles     int     `json:"total_files"`
	IndexedFiles   int     `json:"indexed_files"`
	UnchangedFiles int     `json:"unchanged_files"`
	NewFiles       int     `json:"new_files"`
	ModifiedFiles  int     `json:"modified_files"`
	DeletedFiles   int     `json:"deleted_files"`
	PercentIndexed float64 `json:"percent_indexed"`
}

// Detail is one changed file, truncated to the first 10 entries per kind.
type Detail struct {
	RelativePath string `json:"relative_path"`
	Kind         string `json:"kind"`
}

// Status is the full response shape.
type Status struct {
	IsIndexed       bool                  `json:"is_indexed"`
	IsFullyIndexed  bool                  `json:"is_fully_indexed"`
	NeedsReindex    bool                  `json:"needs_reindex"`
	Stats           Stats                 `json:"stats"`
	Recommendation  change.Recommendation `json:"recommendation"`
	Message         string                `json:"message"`
	Details         []Detail              `json:"details,omitempty"`
}

const detailTruncation = 10

// Service checks index status using C4 (change detection) and C7 (relational bookkeeping).
type Service struct {
	Rel      RelStore
	ExtAllow []string
}

// CheckIndex reports the index status of codebasePath for (project, dataset)
// per spec §4.10: zero indexed_files rows short-circuits to
// {is_indexed: false, recommendation: full-reindex}, otherwise runs the
// change detector and classifies via its thresholds.
func (s *Service) CheckIndex(ctx context.Context, codebasePath, project, dataset string, includeDetails bool) (Status, error) {
	projectID, err := s.Rel.GetOrCreateProject(ctx, project)
	if err != nil {
		return Status{}, err
	}
	datasetID, err := s.Rel.GetOrCreateDataset(ctx, &projectID, dataset)
	if err != nil {
		return Status{}, err
	}

	indexed, err := s.Rel.IndexedFilesFor(ctx, datasetID)
	if err != nil {
		return Status{}, err
	}
	if len(indexed) == 0 {
		return Status{
			IsIndexed:      false,
			NeedsReindex:   true,
			Recommendation: change.RecommendFullReindex,
			Message:        "no indexed files recorded for this project/dataset",
		}, nil
	}

	ignore, err := change.BuildIgnoreSet(codebasePath, "")
	if err != nil {
		return Status{}, err
	}
	report, err := change.Detect(ctx, codebasePath, s.ExtAllow, ignore, indexed)
	if err != nil {
		return Status{}, err
	}
	rec := change.Recommend(report)

	st := Status{
		IsIndexed:      true,
		IsFullyIndexed: rec == change.RecommendSkip,
		NeedsReindex:   rec != change.RecommendSkip,
		Recommendation: rec,
		Stats: Stats{
			TotalFiles:     report.Stats.TotalFiles,
			IndexedFiles:   report.Stats.IndexedFiles,
			UnchangedFiles: report.Stats.UnchangedFiles,
			NewFiles:       report.Stats.NewFiles,
			ModifiedFiles:  report.Stats.ModifiedFiles,
			DeletedFiles:   report.Stats.DeletedFiles,
			PercentIndexed: report.Stats.PercentIndexed(),
		},
	}

	switch rec {
	case change.RecommendSkip:
		st.Message = "index is up to date"
	case change.RecommendIncremental:
		st.Message = "index is mostly current; an incremental reindex is recommended"
	default:
		st.Message = "index has drifted significantly; a full reindex is recommended"
	}

	if includeDetails {
		st.Details = buildDetails(report)
	}
	return st, nil
}

func buildDetails(r change.Report) []Detail {
	var out []Detail
	add := func(paths []string, kind string) {
		if len(paths) > detailTruncation {
			paths = paths[:detailTruncation]
		}
		for _, p := range paths {
			out = append(out, Detail{RelativePath: p, Kind: kind})
		}
	}
	add(r.New, "new")
	add(r.Modified, "modified")
	add(r.Deleted, "deleted")
	return out
}
