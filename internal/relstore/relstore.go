// Package relstore implements the Relational Store Gateway (C7, spec §4.7):
// project/dataset/collection bookkeeping, access-set queries satisfying
// scope.DatasetAccessReader, indexed-file tracking for the change detector,
// and project-share CRUD — backed by Postgres via pgx, in the teacher's
// store-gateway idiom (connection pooling, migration-on-start,
// ON CONFLICT upserts).
package relstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seanblong/reposearch/internal/apierr"
	"github.com/seanblong/reposearch/pkg/models"
)

// Store is the Postgres-backed relational gateway.
type Store struct {
	pool *pgxpool.Pool
}

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

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS projects (
  id   BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS datasets (
  id         BIGSERIAL PRIMARY KEY,
  project_id BIGINT REFERENCES projects(id) ON DELETE CASCADE,
  name       TEXT NOT NULL,
  status     TEXT NOT NULL DEFAULT 'active'
);

CREATE UNIQUE INDEX IF NOT EXISTS datasets_project_name_idx
  ON datasets (project_id, name) WHERE project_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS datasets_global_name_idx
  ON datasets (name) WHERE project_id IS NULL;

CREATE TABLE IF NOT EXISTS dataset_collections (
  dataset_id      BIGINT PRIMARY KEY REFERENCES datasets(id) ON DELETE CASCADE,
  name            TEXT NOT NULL UNIQUE,
  backend         TEXT NOT NULL DEFAULT 'pgvector',
  dimension       INT NOT NULL,
  hybrid          BOOLEAN NOT NULL DEFAULT FALSE,
  point_count     BIGINT NOT NULL DEFAULT 0,
  last_indexed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS indexed_files (
  project_id      BIGINT NOT NULL,
  dataset_id      BIGINT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
  relative_path   TEXT NOT NULL,
  content_hash    TEXT NOT NULL,
  file_size       BIGINT NOT NULL,
  chunk_count     INT NOT NULL,
  last_indexed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  language        TEXT,
  PRIMARY KEY (dataset_id, relative_path)
);

CREATE TABLE IF NOT EXISTS project_shares (
  from_project  BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  to_project    BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  resource_type TEXT NOT NULL,
  resource_id   BIGINT NOT NULL,
  expires_at    TIMESTAMPTZ,
  PRIMARY KEY (from_project, to_project, resource_type, resource_id)
);
`)
	return err
}

// GetOrCreateProject resolves name to a project id, creating it if absent.
// Race-safe via ON CONFLICT ... RETURNING (teacher's upsert idiom).
func (s *Store) GetOrCreateProject(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO projects (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, apierr.Transient("creating project", err)
	}
	return id, nil
}

// GetOrCreateDataset resolves (projectID, name) to a dataset id. projectID
// nil means the global scope's dataset. The two partial unique indexes
// created in Migrate back the two ON CONFLICT targets below.
func (s *Store) GetOrCreateDataset(ctx context.Context, projectID *int64, name string) (int64, error) {
	var id int64
	var err error
	if projectID == nil {
		err = s.pool.QueryRow(ctx, `
INSERT INTO datasets (project_id, name) VALUES (NULL,$1)
ON CONFLICT (name) WHERE project_id IS NULL DO UPDATE SET name = EXCLUDED.name
RETURNING id`, name).Scan(&id)
	} else {
		err = s.pool.QueryRow(ctx, `
INSERT INTO datasets (project_id, name) VALUES ($1,$2)
ON CONFLICT (project_id, name) WHERE project_id IS NOT NULL DO UPDATE SET name = EXCLUDED.name
RETURNING id`, *projectID, name).Scan(&id)
	}
	if err != nil {
		return 0, apierr.Transient("creating dataset", err)
	}
	return id, nil
}

// GetOrCreateCollectionRecord registers metadata for a dataset's backing
// collection. Non-fatal to the caller if it fails mid-ingest (spec §4.8
// step 3: "load-bearing but non-fatal").
func (s *Store) GetOrCreateCollectionRecord(ctx context.Context, datasetID int64, name string, dimension int, hybrid bool) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO dataset_collections (dataset_id, name, dimension, hybrid)
VALUES ($1,$2,$3,$4)
ON CONFLICT (dataset_id) DO NOTHING`, datasetID, name, dimension, hybrid)
	if err != nil {
		return apierr.Transient("recording collection metadata", err)
	}
	return nil
}

// UpdateCollectionMetadata refreshes point_count/last_indexed_at after an
// ingest run.
func (s *Store) UpdateCollectionMetadata(ctx context.Context, datasetID int64, pointCount int64, indexedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
UPDATE dataset_collections SET point_count = $2, last_indexed_at = $3
WHERE dataset_id = $1`, datasetID, pointCount, indexedAt)
	if err != nil {
		return apierr.Transient("updating collection metadata", err)
	}
	return nil
}

// ResolveCollectionsFor returns the backing collection record for every
// dataset id given (spec §4.9 step 4: "collection discovery").
func (s *Store) ResolveCollectionsFor(ctx context.Context, datasetIDs []int64) ([]models.Collection, error) {
	if len(datasetIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT dataset_id, name, backend, dimension, hybrid, point_count, last_indexed_at
FROM dataset_collections WHERE dataset_id = ANY($1)`, datasetIDs)
	if err != nil {
		return nil, apierr.Transient("resolving collections", err)
	}
	defer rows.Close()

	var out []models.Collection
	for rows.Next() {
		var c models.Collection
		var lastIndexed *time.Time
		if err := rows.Scan(&c.DatasetID, &c.Name, &c.Backend, &c.Dimension, &c.Hybrid, &c.PointCount, &lastIndexed); err != nil {
			return nil, err
		}
		if lastIndexed != nil {
			c.LastIndexedAt = *lastIndexed
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertIndexedFiles records (or refreshes) per-file change-detection state.
func (s *Store) InsertIndexedFiles(ctx context.Context, projectID, datasetID int64, files []models.IndexedFile) error {
	if len(files) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, f := range files {
		batch.Queue(`
INSERT INTO indexed_files (project_id, dataset_id, relative_path, content_hash, file_size, chunk_count, last_indexed_at, language)
VALUES ($1,$2,$3,$4,$5,$6,now(),$7)
ON CONFLICT (dataset_id, relative_path) DO UPDATE SET
  content_hash    = EXCLUDED.content_hash,
  file_size       = EXCLUDED.file_size,
  chunk_count     = EXCLUDED.chunk_count,
  last_indexed_at = EXCLUDED.last_indexed_at,
  language        = EXCLUDED.language`,
			projectID, datasetID, f.RelativePath, f.ContentHash, f.FileSize, f.ChunkCount, f.Language)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range files {
		if _, err := br.Exec(); err != nil {
			return apierr.Transient("recording indexed files", err)
		}
	}
	return nil
}

// DeleteIndexedFile removes change-detection state for one file (its
// chunks are removed separately, via vectorstore.DeleteByPath).
func (s *Store) DeleteIndexedFile(ctx context.Context, datasetID int64, relativePath string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM indexed_files WHERE dataset_id = $1 AND relative_path = $2`,
		datasetID, relativePath)
	if err != nil {
		return apierr.Transient("deleting indexed file", err)
	}
	return nil
}

// IndexedFilesFor loads the current change-detection snapshot for a
// dataset, keyed by relative path (consumed directly by internal/change).
func (s *Store) IndexedFilesFor(ctx context.Context, datasetID int64) (map[string]models.IndexedFile, error) {
	rows, err := s.pool.Query(ctx, `
SELECT project_id, dataset_id, relative_path, content_hash, file_size, chunk_count, last_indexed_at, language
FROM indexed_files WHERE dataset_id = $1`, datasetID)
	if err != nil {
		return nil, apierr.Transient("loading indexed files", err)
	}
	defer rows.Close()

	out := make(map[string]models.IndexedFile)
	for rows.Next() {
		var f models.IndexedFile
		if err := rows.Scan(&f.ProjectID, &f.DatasetID, &f.RelativePath, &f.ContentHash, &f.FileSize, &f.ChunkCount, &f.LastIndexedAt, &f.Language); err != nil {
			return nil, err
		}
		out[f.RelativePath] = f
	}
	return out, rows.Err()
}

// --- scope.DatasetAccessReader ---

func (s *Store) ProjectIDByName(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM projects WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apierr.Transient("resolving project by name", err)
	}
	return id, true, nil
}

func (s *Store) DatasetIDsForProject(ctx context.Context, projectID int64) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT id FROM datasets WHERE project_id = $1 AND status = 'active'`, projectID)
}

func (s *Store) GlobalDatasetIDs(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT id FROM datasets WHERE project_id IS NULL AND status = 'active'`)
}

func (s *Store) AllDatasetIDs(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT id FROM datasets WHERE status = 'active'`)
}

func (s *Store) SharedDatasetIDs(ctx context.Context, toProject int64) ([]int64, error) {
	return s.queryIDs(ctx, `
SELECT DISTINCT d.id FROM datasets d
JOIN project_shares ps ON ps.resource_type = 'dataset' AND ps.resource_id = d.id
WHERE ps.to_project = $1 AND (ps.expires_at IS NULL OR ps.expires_at > now())`, toProject)
}

// DatasetNamesByIDs resolves each dataset id to its name, for selector
// matching against the C2 pattern resolver (spec §4.9 step 2).
func (s *Store) DatasetNamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM datasets WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, apierr.Transient("resolving dataset names", err)
	}
	defer rows.Close()

	out := make(map[int64]string, len(ids))
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

func (s *Store) queryIDs(ctx context.Context, sql string, args ...any) ([]int64, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, apierr.Transient("listing dataset ids", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- project shares ---

func (s *Store) CreateShare(ctx context.Context, share models.ProjectShare) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO project_shares (from_project, to_project, resource_type, resource_id, expires_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (from_project, to_project, resource_type, resource_id) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		share.FromProject, share.ToProject, share.ResourceType, share.ResourceID, share.ExpiresAt)
	if err != nil {
		return apierr.Transient("creating project share", err)
	}
	return nil
}

func (s *Store) RevokeShare(ctx context.Context, fromProject, toProject int64, resourceType string, resourceID int64) error {
	_, err := s.pool.Exec(ctx, `
DELETE FROM project_shares
WHERE from_project = $1 AND to_project = $2 AND resource_type = $3 AND resource_id = $4`,
		fromProject, toProject, resourceType, resourceID)
	if err != nil {
		return apierr.Transient("revoking project share", err)
	}
	return nil
}

func (s *Store) SharesFrom(ctx context.Context, fromProject int64) ([]models.ProjectShare, error) {
	rows, err := s.pool.Query(ctx, `
SELECT from_project, to_project, resource_type, resource_id, expires_at
FROM project_shares WHERE from_project = $1`, fromProject)
	if err != nil {
		return nil, apierr.Transient("listing project shares", err)
	}
	defer rows.Close()

	var out []models.ProjectShare
	for rows.Next() {
		var sh models.ProjectShare
		var expires *time.Time
		if err := rows.Scan(&sh.FromProject, &sh.ToProject, &sh.ResourceType, &sh.ResourceID, &expires); err != nil {
			return nil, err
		}
		sh.ExpiresAt = expires
		out = append(out, sh)
	}
	return out, rows.Err()
}

// DeleteDataset cascades: the caller is responsible for dropping the
// backing vectorstore collection first (spec §4.8 "force-drop" step).
func (s *Store) DeleteDataset(ctx context.Context, datasetID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, datasetID)
	if err != nil {
		return apierr.Transient("deleting dataset", err)
	}
	return nil
}
