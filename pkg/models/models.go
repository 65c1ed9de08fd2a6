// Package models holds the wire and record types shared across the
// ingestion pipeline, the vector and relational store gateways, and the
// query engine.
package models

import "time"

// SourceType distinguishes a chunk's origin.
type SourceType string

const (
	SourceCode SourceType = "code"
	SourceWeb  SourceType = "web_page"
)

// Symbol names the AST construct a code chunk was split from, when known.
type Symbol struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Chunk is the payload persisted alongside a chunk's vectors in the vector
// store (spec §3 "Chunk payload"). Content itself is carried separately by
// callers that need it (e.g. for embedding or previewing) so that payload
// round-trips stay small.
type Chunk struct {
	ID           string     `json:"id"`
	ProjectID    int64      `json:"project_id"`
	DatasetID    int64      `json:"dataset_id"`
	SourceType   SourceType `json:"source_type"`
	RelativePath string     `json:"relative_path"`
	StartLine    int        `json:"start_line"`
	EndLine      int        `json:"end_line"`
	ChunkIndex   int        `json:"chunk_index"`
	FileExt      string     `json:"file_extension"`
	Language     string     `json:"language"`
	Repo         string     `json:"repo,omitempty"`
	Branch       string     `json:"branch,omitempty"`
	SHA          string     `json:"sha,omitempty"`
	ChunkTitle   string     `json:"chunk_title,omitempty"`
	Symbol       *Symbol    `json:"symbol,omitempty"`
	Title        string     `json:"title,omitempty"`
	Domain       string     `json:"domain,omitempty"`
	Content      string     `json:"-"`
	Summary      string     `json:"summary,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SparseVector is a length-matched, non-negative sparse embedding.
type SparseVector struct {
	Indices []int32   `json:"indices"`
	Values  []float32 `json:"values"`
}

// Project is the top-level owner of datasets (spec §3).
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DatasetStatus tracks dataset-level lifecycle state.
type DatasetStatus string

const (
	DatasetActive  DatasetStatus = "active"
	DatasetPending DatasetStatus = "pending"
	DatasetCleared DatasetStatus = "cleared"
)

// Dataset belongs to a project, or is global when ProjectID is nil.
type Dataset struct {
	ID        int64         `json:"id"`
	ProjectID *int64        `json:"project_id,omitempty"`
	Name      string        `json:"name"`
	Status    DatasetStatus `json:"status"`
}

// Collection is the one-to-one physical partition backing a dataset.
type Collection struct {
	ID            int64     `json:"id"`
	DatasetID     int64     `json:"dataset_id"`
	Name          string    `json:"name"`
	Backend       string    `json:"backend"`
	Dimension     int       `json:"dimension"`
	Hybrid        bool      `json:"hybrid"`
	PointCount    int64     `json:"point_count"`
	LastIndexedAt time.Time `json:"last_indexed_at,omitempty"`
}

// IndexedFile is the relational bookkeeping row used for change detection.
type IndexedFile struct {
	ProjectID     int64     `json:"project_id"`
	DatasetID     int64     `json:"dataset_id"`
	RelativePath  string    `json:"relative_path"`
	ContentHash   string    `json:"content_hash"`
	FileSize      int64     `json:"file_size"`
	ChunkCount    int       `json:"chunk_count"`
	LastIndexedAt time.Time `json:"last_indexed_at"`
	Language      string    `json:"language,omitempty"`
}

// ProjectShare grants one project read-access to another's resource.
type ProjectShare struct {
	FromProject  int64      `json:"from_project"`
	ToProject    int64      `json:"to_project"`
	ResourceType string     `json:"resource_type"`
	ResourceID   int64      `json:"resource_id"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Scores carries the score breakdown for one query result (spec §4.9 step 9).
type Scores struct {
	Vector float64  `json:"vector"`
	Sparse *float64 `json:"sparse,omitempty"`
	Rerank *float64 `json:"rerank,omitempty"`
	Final  float64  `json:"final"`
}

// SearchResult is one ranked hit returned by the hybrid query engine.
type SearchResult struct {
	ID        string  `json:"id"`
	Chunk     Chunk   `json:"chunk"`
	File      string  `json:"file"`
	LineSpan  [2]int  `json:"line_span"`
	Scores    Scores  `json:"scores"`
	ProjectID int64   `json:"project_id"`
	DatasetID int64   `json:"dataset_id"`
	Repo      string  `json:"repo,omitempty"`
	Lang      string  `json:"lang,omitempty"`
	Symbol    *Symbol `json:"symbol,omitempty"`
}

// RetrievalMethod records which retrieval path produced a response.
type RetrievalMethod string

const (
	RetrievalDense       RetrievalMethod = "dense"
	RetrievalHybrid      RetrievalMethod = "hybrid"
	RetrievalRerank      RetrievalMethod = "rerank"
	RetrievalHybridRerank RetrievalMethod = "hybrid+rerank"
)

// Timing carries per-phase latency in milliseconds.
type Timing struct {
	EmbeddingMS int64 `json:"embedding"`
	SearchMS    int64 `json:"search"`
	RerankMS    int64 `json:"reranking,omitempty"`
	TotalMS     int64 `json:"total"`
}

// SearchParams echoes the effective parameters used for a query.
type SearchParams struct {
	InitialK     int      `json:"initial_k"`
	FinalK       int      `json:"final_k"`
	DenseWeight  *float64 `json:"dense_weight,omitempty"`
	SparseWeight *float64 `json:"sparse_weight,omitempty"`
}

// ResponseMetadata is the non-result envelope of a query response.
type ResponseMetadata struct {
	RetrievalMethod RetrievalMethod `json:"retrieval_method"`
	Timing          Timing          `json:"timing_ms"`
	FeaturesUsed    []string        `json:"features_used"`
	SearchParams    SearchParams    `json:"search_params"`
}

// QueryResponse is the full shape returned by the hybrid query engine.
type QueryResponse struct {
	Results  []SearchResult   `json:"results"`
	Metadata ResponseMetadata `json:"metadata"`
	Message  string           `json:"message,omitempty"`
	IsError  bool             `json:"is_error,omitempty"`
}
