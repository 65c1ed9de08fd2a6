// Package ingest implements the Ingestion Orchestrator (C8, spec §4.8):
// resolve scope, ensure the backing collection, scan and chunk a codebase
// or page set, embed in batches, and upsert — emitting progress events at
// file boundaries. Grounded on the teacher's internal/indexer.Indexer
// worker-pool idiom, generalized from a single naive per-file chunk to the
// full C1-C7 pipeline.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seanblong/reposearch/internal/apierr"
	"github.com/seanblong/reposearch/internal/change"
	"github.com/seanblong/reposearch/internal/chunk"
	"github.com/seanblong/reposearch/internal/embed"
	"github.com/seanblong/reposearch/internal/scope"
	"github.com/seanblong/reposearch/internal/vectorstore"
	"github.com/seanblong/reposearch/pkg/models"
)

// RelStore is the narrow relational-gateway view the orchestrator needs.
type RelStore interface {
	GetOrCreateProject(ctx context.Context, name string) (int64, error)
	GetOrCreateDataset(ctx context.Context, projectID *int64, name string) (int64, error)
	GetOrCreateCollectionRecord(ctx context.Context, datasetID int64, name string, dimension int, hybrid bool) error
	UpdateCollectionMetadata(ctx context.Context, datasetID int64, pointCount int64, indexedAt time.Time) error
	InsertIndexedFiles(ctx context.Context, projectID, datasetID int64, files []models.IndexedFile) error
	DeleteIndexedFile(ctx context.Context, datasetID int64, relativePath string) error
	IndexedFilesFor(ctx context.Context, datasetID int64) (map[string]models.IndexedFile, error)
	DeleteDataset(ctx context.Context, datasetID int64) error
}

// VectorStore is the narrow vector-gateway view the orchestrator needs.
type VectorStore interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, dimension int, hybrid bool) error
	DropCollection(ctx context.Context, name string) error
	Insert(ctx context.Context, collection string, docs []vectorstore.Doc) error
	InsertHybrid(ctx context.Context, collection string, docs []vectorstore.Doc) error
	DeleteByDataset(ctx context.Context, collection string, datasetID int64) (int64, error)
	DeleteByPath(ctx context.Context, collection string, datasetID int64, relativePath string) (int64, error)
	CountPoints(ctx context.Context, collection string) (int64, error)
}

// Provenance carries repo/branch/commit tags attached to every chunk from
// one ingest job.
type Provenance struct {
	Repo   string
	Branch string
	SHA    string
}

// Job is the ingestion request (spec §4.8 input).
type Job struct {
	CodebasePath string
	Project      string
	Dataset      string
	Provenance   Provenance
	Force        bool
	ExtAllow     []string
	LanguageHint string
}

// Status is the job's terminal verdict.
type Status string

const (
	StatusCompleted    Status = "completed"
	StatusLimitReached Status = "limit_reached"
)

// Result is the job outcome (spec §4.8: "{indexed_files, total_chunks, status}").
type Result struct {
	IndexedFiles int
	TotalChunks  int
	Status       Status
}

// ProgressEvent is emitted at file boundaries (spec §4.8 step 9).
type ProgressEvent struct {
	Phase      string
	Current    int
	Total      int
	Percentage float64
}

// ProgressFunc receives progress events; nil is a valid no-op sink.
type ProgressFunc func(ProgressEvent)

// Orchestrator wires C1-C7 components into the ingestion pipeline.
type Orchestrator struct {
	Rel    RelStore
	Vec    VectorStore
	Embed  *embed.Coordinator
	Code   *chunk.CodeChunker
	Web    *chunk.WebChunker
	Dim    int
	Hybrid bool
}

// Run executes the 9-step ingestion algorithm (spec §4.8) for a code
// source tree. Per-file failures are logged and skipped; they never abort
// the job.
func (o *Orchestrator) Run(ctx context.Context, job Job, progress ProgressFunc) (Result, error) {
	// Step 1: resolve (project_id, dataset_id); derive collection name.
	projectID, err := o.Rel.GetOrCreateProject(ctx, job.Project)
	if err != nil {
		return Result{}, err
	}
	datasetID, err := o.Rel.GetOrCreateDataset(ctx, &projectID, job.Dataset)
	if err != nil {
		return Result{}, err
	}
	collection := scope.NameFor(scope.Local, job.Project, job.Dataset)

	// Step 2: force-drop.
	if job.Force {
		exists, err := o.Vec.HasCollection(ctx, collection)
		if err != nil {
			return Result{}, err
		}
		if exists {
			if err := o.Vec.DropCollection(ctx, collection); err != nil {
				return Result{}, err
			}
		}
	}

	// Step 3: ensure collection exists with the embedder's dimension.
	if err := o.Vec.CreateCollection(ctx, collection, o.Dim, o.Hybrid); err != nil {
		return Result{}, err
	}

	// Step 4: ensure collection record (load-bearing, non-fatal).
	if err := o.Rel.GetOrCreateCollectionRecord(ctx, datasetID, collection, o.Dim, o.Hybrid); err != nil {
		log.Warn().Err(err).Str("collection", collection).
			Msg("collection record not recorded; downstream point counts will be stale")
	}

	// Step 5+6+7: scan, chunk, embed, upsert.
	ignore, err := change.BuildIgnoreSet(job.CodebasePath, "")
	if err != nil {
		return Result{}, err
	}
	indexed, err := o.Rel.IndexedFilesFor(ctx, datasetID)
	if err != nil {
		return Result{}, err
	}
	report, err := change.Detect(ctx, job.CodebasePath, job.ExtAllow, ignore, indexed)
	if err != nil {
		return Result{}, err
	}

	// Modified files: drop their superseded chunks before reprocessing, since
	// chunk ids are derived from path+line span+index+content and an edit
	// that shifts line spans or chunk counts would otherwise leave the old
	// chunks orphaned in the vector store alongside the new ones.
	for _, relPath := range report.Modified {
		if _, err := o.Vec.DeleteByPath(ctx, collection, datasetID, relPath); err != nil {
			log.Warn().Err(err).Str("path", relPath).Msg("ingest: failed to delete superseded chunks for modified file")
		}
	}

	files := append(append([]string{}, report.New...), report.Modified...)
	total := len(files)
	budget := embed.NewJobBudget(embed.Config{})

	var indexedFileCount, totalChunks int
	limitReached := false

	for i, relPath := range files {
		if limitReached {
			break
		}
		select {
		case <-ctx.Done():
			return Result{IndexedFiles: indexedFileCount, TotalChunks: totalChunks, Status: StatusCompleted}, ctx.Err()
		default:
		}

		n, err := o.ingestFile(ctx, job, projectID, datasetID, collection, relPath, budget)
		if err != nil {
			if apierr.Is(err, apierr.KindPermanent) {
				limitReached = true
			}
			log.Error().Err(err).Str("path", relPath).Msg("ingest: file failed, skipping")
		} else {
			indexedFileCount++
			totalChunks += n
		}

		if progress != nil {
			progress(ProgressEvent{
				Phase:      "scan",
				Current:    i + 1,
				Total:      total,
				Percentage: 100 * float64(i+1) / float64(max(total, 1)),
			})
		}
	}

	// Deleted files: remove their chunks and bookkeeping.
	for _, relPath := range report.Deleted {
		if _, err := o.Vec.DeleteByPath(ctx, collection, datasetID, relPath); err != nil {
			log.Warn().Err(err).Str("path", relPath).Msg("ingest: failed to delete chunks for removed file")
			continue
		}
		if err := o.Rel.DeleteIndexedFile(ctx, datasetID, relPath); err != nil {
			log.Warn().Err(err).Str("path", relPath).Msg("ingest: failed to delete indexed_files row")
		}
	}

	// Step 8: update collection metadata with the authoritative point count.
	if count, err := o.Vec.CountPoints(ctx, collection); err == nil {
		if err := o.Rel.UpdateCollectionMetadata(ctx, datasetID, count, time.Now()); err != nil {
			log.Warn().Err(err).Msg("ingest: failed to update collection metadata")
		}
	}

	status := StatusCompleted
	if limitReached {
		status = StatusLimitReached
	}
	return Result{IndexedFiles: indexedFileCount, TotalChunks: totalChunks, Status: status}, nil
}

// ReindexByChange runs the incremental variant: deletes chunks for
// deleted/modified files by payload filter, then ingests added + modified
// through the same pipeline (spec §4.8 "Incremental variant").
func (o *Orchestrator) ReindexByChange(ctx context.Context, job Job, progress ProgressFunc) (Result, error) {
	job.Force = false
	return o.Run(ctx, job, progress)
}

func (o *Orchestrator) ingestFile(ctx context.Context, job Job, projectID, datasetID int64, collection, relPath string, budget *embed.JobBudget) (int, error) {
	full := job.CodebasePath + string(os.PathSeparator) + relPath
	content, err := os.ReadFile(full)
	if err != nil {
		return 0, apierr.Transient("reading file", err)
	}

	chunks, warn, err := o.Code.ChunkCode(ctx, content, job.LanguageHint, relPath)
	if err != nil {
		return 0, apierr.Permanent("chunking file")
	}
	if warn != "" {
		log.Warn().Str("path", relPath).Str("warning", warn).Msg("ingest: chunker soft-cap warning")
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	if err := budget.Admit(len(chunks)); err != nil {
		return 0, err
	}

	const batchSize = 16
	var upserted int
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		results, err := o.Embed.EmbedBatch(ctx, batch, o.Hybrid)
		if err != nil {
			log.Error().Err(err).Str("path", relPath).Msg("ingest: batch embedding failed, discarding batch")
			continue
		}

		docs := make([]vectorstore.Doc, len(batch))
		for i, ch := range batch {
			c := models.Chunk{
				ID:           chunkID(relPath, ch.StartLine, ch.EndLine, ch.ChunkIndex, ch.Content),
				ProjectID:    projectID,
				DatasetID:    datasetID,
				SourceType:   models.SourceCode,
				RelativePath: relPath,
				StartLine:    ch.StartLine,
				EndLine:      ch.EndLine,
				ChunkIndex:   ch.ChunkIndex,
				FileExt:      ext(relPath),
				Language:     ch.Language,
				Repo:         job.Provenance.Repo,
				Branch:       job.Provenance.Branch,
				SHA:          job.Provenance.SHA,
				Symbol:       ch.Symbol,
				Content:      ch.Content,
				CreatedAt:    time.Now(),
			}
			docs[i] = vectorstore.Doc{Chunk: c, Dense: results[i].Dense, Sparse: results[i].Sparse}
		}

		var upsertErr error
		if o.Hybrid {
			upsertErr = o.Vec.InsertHybrid(ctx, collection, docs)
		} else {
			upsertErr = o.Vec.Insert(ctx, collection, docs)
		}
		if upsertErr != nil {
			log.Error().Err(upsertErr).Str("path", relPath).Msg("ingest: batch upsert failed, discarding batch")
			continue
		}
		upserted += len(docs)
	}

	if err := o.Rel.InsertIndexedFiles(ctx, projectID, datasetID, []models.IndexedFile{{
		ProjectID:     projectID,
		DatasetID:     datasetID,
		RelativePath:  relPath,
		ContentHash:   change.HashFile(content),
		FileSize:      int64(len(content)),
		ChunkCount:    upserted,
		LastIndexedAt: time.Now(),
		Language:      chunks[0].Language,
	}}); err != nil {
		log.Warn().Err(err).Str("path", relPath).Msg("ingest: failed to record indexed_files row")
	}

	return upserted, nil
}

// chunkID derives a stable chunk identifier (spec §6): "chunk_" +
// hex(sha256(relativePath ":" startLine ":" endLine ":" chunkIndex ":" content))[0..16].
func chunkID(relPath string, startLine, endLine, chunkIndex int, content string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d:%d:%s", relPath, startLine, endLine, chunkIndex, content)))
	return "chunk_" + hex.EncodeToString(sum[:])[:16]
}

func ext(relPath string) string {
	for i := len(relPath) - 1; i >= 0 && relPath[i] != '/'; i-- {
		if relPath[i] == '.' {
			return relPath[i:]
		}
	}
	return ""
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
