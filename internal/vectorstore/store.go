// Package vectorstore implements the Vector Store Gateway (C6, spec §4.6):
// collection lifecycle, idempotent hybrid upsert, dense/hybrid search, and
// payload-filtered delete, backed by Postgres + pgvector in the teacher's
// idiom (pgxpool connection handling, ivfflat index migration, batch upserts).
//
// Collections are logical partitions of one physical `chunks` table (the
// teacher kept a single table; "collections" here are realized as a
// `collection` filter column rather than per-collection physical tables,
// so the gateway can serve many collections without a migration per
// dataset). All collections in one deployment share the same vector
// dimension, fixed at Migrate time — the per-collection dimension/hybrid
// flags recorded by the relational gateway (C7) still enforce invariant 3
// (no re-dimensioning without drop-and-rebuild) at the logical level.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/seanblong/reposearch/internal/apierr"
	"github.com/seanblong/reposearch/pkg/models"
)

// Store is the Postgres/pgvector-backed vector store gateway.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the given DSN.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate creates the schema, fixing the service-wide vector dimension.
func (s *Store) Migrate(ctx context.Context, dim int) error {
	q := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS collections (
  name       TEXT PRIMARY KEY,
  dimension  INT NOT NULL,
  hybrid     BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chunks (
  id            TEXT NOT NULL,
  collection    TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
  project_id    BIGINT NOT NULL,
  dataset_id    BIGINT NOT NULL,
  source_type   TEXT NOT NULL,
  relative_path TEXT NOT NULL,
  start_line    INT NOT NULL,
  end_line      INT NOT NULL,
  chunk_index   INT NOT NULL DEFAULT 0,
  file_extension TEXT,
  language      TEXT,
  repo          TEXT,
  branch        TEXT,
  sha           TEXT,
  chunk_title   TEXT,
  symbol_name   TEXT,
  symbol_kind   TEXT,
  title         TEXT,
  domain        TEXT,
  content       TEXT,
  summary       TEXT,
  dense_vec     vector(%d),
  sparse_vec    JSONB,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS chunks_dataset_idx ON chunks (collection, dataset_id);
CREATE INDEX IF NOT EXISTS chunks_path_idx ON chunks (collection, relative_path);
CREATE INDEX IF NOT EXISTS chunks_dense_vec_idx ON chunks USING ivfflat (dense_vec vector_cosine_ops) WITH (lists = 100);
`, dim)
	_, err := s.pool.Exec(ctx, q)
	return err
}

// HasCollection reports whether a named collection has been created.
func (s *Store) HasCollection(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM collections WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, apierr.Transient("checking collection existence", err)
	}
	return exists, nil
}

// CreateCollection registers name with a fixed dimension and hybrid flag.
// dimension must match the store-wide dimension set at Migrate time
// (invariant 3): a mismatch is a Permanent error requiring drop-and-rebuild.
func (s *Store) CreateCollection(ctx context.Context, name string, dimension int, hybrid bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO collections (name, dimension, hybrid) VALUES ($1,$2,$3)
		 ON CONFLICT (name) DO NOTHING`, name, dimension, hybrid)
	if err != nil {
		return apierr.Transient("creating collection", err)
	}
	return nil
}

// DropCollection removes a collection and all of its chunks.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM collections WHERE name = $1`, name)
	if err != nil {
		return apierr.Transient("dropping collection", err)
	}
	return nil
}

// ListCollections returns every registered collection name.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, apierr.Transient("listing collections", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Doc is one chunk plus its vectors, ready for idempotent upsert.
type Doc struct {
	Chunk  models.Chunk
	Dense  []float32
	Sparse *models.SparseVector
}

// Insert performs a dense-only idempotent upsert (spec §4.6).
func (s *Store) Insert(ctx context.Context, collection string, docs []Doc) error {
	return s.upsert(ctx, collection, docs, false)
}

// InsertHybrid performs a dense+sparse idempotent upsert.
func (s *Store) InsertHybrid(ctx context.Context, collection string, docs []Doc) error {
	return s.upsert(ctx, collection, docs, true)
}

func (s *Store) upsert(ctx context.Context, collection string, docs []Doc, hybrid bool) error {
	if len(docs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range docs {
		c := d.Chunk
		var symName, symKind *string
		if c.Symbol != nil {
			symName, symKind = &c.Symbol.Name, &c.Symbol.Kind
		}
		var dv any = pgvector.NewVector(d.Dense)
		var sv any
		if hybrid && d.Sparse != nil {
			b, err := json.Marshal(d.Sparse)
			if err != nil {
				return apierr.Permanent("marshalling sparse vector")
			}
			sv = b
		}

		batch.Queue(`
INSERT INTO chunks (
  id, collection, project_id, dataset_id, source_type, relative_path,
  start_line, end_line, chunk_index, file_extension, language, repo,
  branch, sha, chunk_title, symbol_name, symbol_kind, title, domain,
  content, summary, dense_vec, sparse_vec
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23
)
ON CONFLICT (collection, id) DO UPDATE SET
  relative_path = EXCLUDED.relative_path,
  start_line    = EXCLUDED.start_line,
  end_line      = EXCLUDED.end_line,
  chunk_index   = EXCLUDED.chunk_index,
  content       = EXCLUDED.content,
  summary       = EXCLUDED.summary,
  dense_vec     = EXCLUDED.dense_vec,
  sparse_vec    = COALESCE(EXCLUDED.sparse_vec, chunks.sparse_vec)`,
			c.ID, collection, c.ProjectID, c.DatasetID, string(c.SourceType), c.RelativePath,
			c.StartLine, c.EndLine, c.ChunkIndex, c.FileExt, c.Language, c.Repo,
			c.Branch, c.SHA, c.ChunkTitle, symName, symKind, c.Title, c.Domain,
			c.Content, c.Summary, dv, sv,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range docs {
		if _, err := br.Exec(); err != nil {
			return apierr.Transient("upserting chunk batch", err)
		}
	}
	return nil
}

// Filter is the payload filter model (spec §4.6): datasetIds always
// evaluates as set-membership.
type Filter struct {
	ProjectID    *int64
	DatasetIDs   []int64
	Repo         string
	Lang         string
	PathPrefix   string
	SourceType   string
}

// Result is one hit from a physical search call, prior to C9's fusion.
type Result struct {
	Chunk       models.Chunk
	VectorScore float64
	SparseScore *float64
}

// SearchOpts bounds and scores a search call.
type SearchOpts struct {
	TopK      int
	Threshold float64
	Filter    Filter
}

// Search runs dense-only cosine search.
func (s *Store) Search(ctx context.Context, collection string, dense []float32, opts SearchOpts) ([]Result, error) {
	has, err := s.HasCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, apierr.NotFound("collection " + collection + " does not exist")
	}

	where, args := buildFilter(opts.Filter, collection)
	args = append(args, pgvector.NewVector(dense))
	simArg := len(args)
	args = append(args, opts.TopK)

	q := fmt.Sprintf(`
SELECT id, project_id, dataset_id, source_type, relative_path, start_line, end_line,
       chunk_index, file_extension, language, repo, branch, sha, chunk_title,
       symbol_name, symbol_kind, title, domain, content, summary,
       1 - (dense_vec <=> $%d) AS score
FROM chunks
WHERE %s
ORDER BY dense_vec <=> $%d ASC
LIMIT $%d`, simArg, where, simArg, simArg+1)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, apierr.Transient("dense search", err)
	}
	defer rows.Close()

	return scanResults(rows, opts.Threshold)
}

// HybridQuery fuses dense cosine similarity with a Go-side sparse
// dot-product score by weighted sum (spec §4.6 "internal fusion").
func (s *Store) HybridQuery(ctx context.Context, collection string, dense []float32, sparse *models.SparseVector, opts SearchOpts, denseWeight, sparseWeight float64) ([]Result, error) {
	dense_results, err := s.Search(ctx, collection, dense, SearchOpts{TopK: opts.TopK * 3, Threshold: 0, Filter: opts.Filter})
	if err != nil {
		return nil, err
	}

	if sparse == nil || len(sparse.Indices) == 0 {
		// No sparse signal available; degrade to dense-only ordering.
		if len(dense_results) > opts.TopK {
			dense_results = dense_results[:opts.TopK]
		}
		return dense_results, nil
	}

	sparseScores, err := s.sparseScoresFor(ctx, collection, dense_results, sparse)
	if err != nil {
		return nil, err
	}

	for i := range dense_results {
		sc := sparseScores[dense_results[i].Chunk.ID]
		fused := denseWeight*dense_results[i].VectorScore + sparseWeight*sc
		dense_results[i].SparseScore = &fused
	}

	sortResultsByFused(dense_results)
	if len(dense_results) > opts.TopK {
		dense_results = dense_results[:opts.TopK]
	}
	return dense_results, nil
}

func (s *Store) sparseScoresFor(ctx context.Context, collection string, results []Result, query *models.SparseVector) (map[string]float64, error) {
	out := make(map[string]float64, len(results))
	if len(results) == 0 {
		return out, nil
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Chunk.ID
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, sparse_vec FROM chunks WHERE collection = $1 AND id = ANY($2)`,
		collection, ids)
	if err != nil {
		return nil, apierr.Transient("fetching sparse vectors", err)
	}
	defer rows.Close()

	qvec := sparseMap(query)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		var sv models.SparseVector
		if err := json.Unmarshal(raw, &sv); err != nil {
			continue
		}
		out[id] = sparseDot(qvec, &sv)
	}
	return out, rows.Err()
}

func sparseMap(v *models.SparseVector) map[int32]float32 {
	m := make(map[int32]float32, len(v.Indices))
	for i, idx := range v.Indices {
		m[idx] = v.Values[i]
	}
	return m
}

func sparseDot(query map[int32]float32, doc *models.SparseVector) float64 {
	var sum float64
	for i, idx := range doc.Indices {
		if qv, ok := query[idx]; ok {
			sum += float64(qv) * float64(doc.Values[i])
		}
	}
	return sum
}

// DeleteByDataset removes every chunk for datasetID from collection,
// returning the number of rows removed (spec §4.6 "payload-filtered
// deletion").
func (s *Store) DeleteByDataset(ctx context.Context, collection string, datasetID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM chunks WHERE collection = $1 AND dataset_id = $2`, collection, datasetID)
	if err != nil {
		return 0, apierr.Transient("deleting dataset chunks", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByPath removes a single file's chunks (used by C8's incremental
// reindex for deleted/modified files).
func (s *Store) DeleteByPath(ctx context.Context, collection string, datasetID int64, relativePath string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM chunks WHERE collection = $1 AND dataset_id = $2 AND relative_path = $3`,
		collection, datasetID, relativePath)
	if err != nil {
		return 0, apierr.Transient("deleting file chunks", err)
	}
	return tag.RowsAffected(), nil
}

// CountPoints returns the authoritative point count for a collection
// (spec §3: Collection.point_count is advisory; this is the source of
// truth C7's update_collection_metadata reads from).
func (s *Store) CountPoints(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks WHERE collection = $1`, collection).Scan(&n)
	if err != nil {
		return 0, apierr.Transient("counting points", err)
	}
	return n, nil
}

func buildFilter(f Filter, collection string) (string, []any) {
	where := "collection = $1"
	args := []any{collection}
	idx := 2

	if f.ProjectID != nil {
		where += fmt.Sprintf(" AND project_id = $%d", idx)
		args = append(args, *f.ProjectID)
		idx++
	}
	if len(f.DatasetIDs) > 0 {
		where += fmt.Sprintf(" AND dataset_id = ANY($%d)", idx)
		args = append(args, f.DatasetIDs)
		idx++
	}
	if f.Repo != "" {
		where += fmt.Sprintf(" AND repo = $%d", idx)
		args = append(args, f.Repo)
		idx++
	}
	if f.Lang != "" {
		where += fmt.Sprintf(" AND language = $%d", idx)
		args = append(args, f.Lang)
		idx++
	}
	if f.PathPrefix != "" {
		where += fmt.Sprintf(" AND relative_path LIKE $%d", idx)
		args = append(args, f.PathPrefix+"%")
		idx++
	}
	if f.SourceType != "" {
		where += fmt.Sprintf(" AND source_type = $%d", idx)
		args = append(args, f.SourceType)
		idx++
	}
	return where, args
}

func scanResults(rows pgx.Rows, threshold float64) ([]Result, error) {
	var out []Result
	for rows.Next() {
		var c models.Chunk
		var symName, symKind *string
		var score float64
		if err := rows.Scan(
			&c.ID, &c.ProjectID, &c.DatasetID, &c.SourceType, &c.RelativePath, &c.StartLine, &c.EndLine,
			&c.ChunkIndex, &c.FileExt, &c.Language, &c.Repo, &c.Branch, &c.SHA, &c.ChunkTitle,
			&symName, &symKind, &c.Title, &c.Domain, &c.Content, &c.Summary, &score,
		); err != nil {
			return nil, err
		}
		if symName != nil {
			c.Symbol = &models.Symbol{Name: *symName, Kind: derefOr(symKind, "")}
		}
		if score < threshold {
			continue
		}
		out = append(out, Result{Chunk: c, VectorScore: score})
	}
	return out, rows.Err()
}

func derefOr(s *string, d string) string {
	if s == nil {
		return d
	}
	return *s
}

func sortResultsDesc(r []Result) {
	// small-n insertion sort is adequate: rerank_candidate_limit-scale inputs
	for i := 1; i < len(r); i++ {
		j := i
		for j > 0 && r[j-1].VectorScore < r[j].VectorScore {
			r[j-1], r[j] = r[j], r[j-1]
			j--
		}
	}
}

// sortResultsByFused orders by the fused weighted-sum score carried in
// SparseScore (spec §4.9 Fusion: vector stays the dense score, the
// fused score is the one ranking drives off of in the hybrid path).
func sortResultsByFused(r []Result) {
	for i := 1; i < len(r); i++ {
		j := i
		for j > 0 && derefOrZero(r[j-1].SparseScore) < derefOrZero(r[j].SparseScore) {
			r[j-1], r[j] = r[j], r[j-1]
			j--
		}
	}
}

func derefOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

