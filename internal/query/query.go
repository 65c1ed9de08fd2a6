// Package query implements the Hybrid Query Engine (C9, spec §4.9): a
// state-free procedure from a search request to a ranked, reranked,
// trimmed response with a full metadata envelope. Grounded on the
// teacher's internal/search.Service.Query, generalized from a single-table
// dense search to scope resolution + dataset expansion + multi-collection
// fan-out + fusion + rerank.
package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rs/zerolog/log"

	"github.com/seanblong/reposearch/internal/apierr"
	"github.com/seanblong/reposearch/internal/dataset"
	"github.com/seanblong/reposearch/internal/scope"
	"github.com/seanblong/reposearch/internal/vectorstore"
	"github.com/seanblong/reposearch/pkg/models"
)

const (
	defaultInitialK           = 150
	defaultRerankCandidateCap = 20
	defaultRerankTextMaxChars = 4000
	maxCollectionConcurrency  = 8
)

// DenseEmbedder embeds a single query string.
type DenseEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SparseEncoder computes a single query's sparse vector.
type SparseEncoder interface {
	ComputeSparse(ctx context.Context, text string) (*models.SparseVector, error)
	IsEnabled() bool
}

// Reranker scores candidates against a query (spec §6, length-matched).
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// RelStore is the narrow relational view the query engine needs.
type RelStore interface {
	scope.DatasetAccessReader
	ResolveCollectionsFor(ctx context.Context, datasetIDs []int64) ([]models.Collection, error)
	DatasetNamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error)
}

// VectorStore is the narrow vector view the query engine needs.
type VectorStore interface {
	Search(ctx context.Context, collection string, dense []float32, opts vectorstore.SearchOpts) ([]vectorstore.Result, error)
	HybridQuery(ctx context.Context, collection string, dense []float32, sparse *models.SparseVector, opts vectorstore.SearchOpts, denseWeight, sparseWeight float64) ([]vectorstore.Result, error)
}

// Config tunes the engine (spec §6 knobs).
type Config struct {
	EnableHybrid       bool
	EnableRerank       bool
	DenseWeight        float64
	SparseWeight       float64
	RerankInitialK     int
	RerankCandidateCap int
	RerankTextMaxChars int
}

func (c Config) withDefaults() Config {
	if c.RerankInitialK <= 0 {
		c.RerankInitialK = defaultInitialK
	}
	if c.RerankCandidateCap <= 0 {
		c.RerankCandidateCap = defaultRerankCandidateCap
	}
	if c.RerankTextMaxChars <= 0 {
		c.RerankTextMaxChars = defaultRerankTextMaxChars
	}
	if c.DenseWeight == 0 && c.SparseWeight == 0 {
		c.DenseWeight, c.SparseWeight = 0.6, 0.4
	}
	return c
}

// Engine implements the Query call.
type Engine struct {
	Rel      RelStore
	Vec      VectorStore
	Dense    DenseEmbedder
	Sparse   SparseEncoder
	Rerank   Reranker
	Resolver *dataset.Resolver
	Cfg      Config
}

// Request is the Query input (spec §4.9).
type Request struct {
	Project         string
	DatasetSelector []string
	Query           string
	TopK            int
	Threshold       float64
	Repo            string
	Lang            string
	PathPrefix      string
	IncludeGlobal   bool
}

// Query runs the 9-step hybrid retrieval procedure.
func (e *Engine) Query(ctx context.Context, req Request) (models.QueryResponse, error) {
	cfg := e.Cfg.withDefaults()
	start := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return errorResponse("query must not be empty"), apierr.Validation("empty query")
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}

	// Step 1: scope resolution.
	accessible, err := scope.AccessibleDatasets(ctx, e.Rel, req.Project, req.IncludeGlobal)
	if err != nil {
		return errorResponse("scope resolution failed"), err
	}
	if len(accessible) == 0 {
		return emptyResponse(cfg, topK), nil
	}

	// Step 2: dataset expansion via C2; selector works against dataset
	// names, so degrade gracefully when the caller wants everything.
	selectedIDs := accessible
	if len(req.DatasetSelector) > 0 {
		nameByID, err := e.Rel.DatasetNamesByIDs(ctx, accessible)
		if err != nil {
			return errorResponse("dataset name resolution failed"), err
		}
		names := make([]string, 0, len(accessible))
		idByName := make(map[string]int64, len(accessible))
		for _, id := range accessible {
			name := nameByID[id]
			names = append(names, name)
			idByName[name] = id
		}
		res := e.Resolver.Resolve(dataset.NewSelector(req.DatasetSelector...), names)
		if res.Empty {
			return emptyResponse(cfg, topK), nil
		}
		selectedIDs = selectedIDs[:0]
		for _, n := range res.Names {
			if id, ok := idByName[n]; ok {
				selectedIDs = append(selectedIDs, id)
			}
		}
		if len(selectedIDs) == 0 {
			return emptyResponse(cfg, topK), nil
		}
	}

	// Step 3: query embedding, dense + optional sparse concurrently.
	embedStart := time.Now()
	var dense []float32
	var sparse *models.SparseVector
	wantSparse := cfg.EnableHybrid && e.Sparse != nil && e.Sparse.IsEnabled()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := e.Dense.Embed(gctx, req.Query)
		if err != nil {
			return apierr.Transient("query embedding failed", err)
		}
		dense = v
		return nil
	})
	if wantSparse {
		g.Go(func() error {
			v, err := e.Sparse.ComputeSparse(gctx, req.Query)
			if err != nil {
				log.Warn().Err(err).Msg("query: sparse embedding failed, degrading to dense-only")
				return nil
			}
			sparse = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Dense failure is fatal to the query (spec §7).
		return errorResponse("query embedding failed"), err
	}
	embeddingMS := time.Since(embedStart).Milliseconds()

	// Step 4: collection discovery.
	collections, err := e.Rel.ResolveCollectionsFor(ctx, selectedIDs)
	if err != nil {
		return errorResponse("collection discovery failed"), err
	}
	if len(collections) == 0 {
		return emptyResponse(cfg, topK), nil
	}

	initialK := topK
	if cfg.EnableRerank {
		initialK = cfg.RerankInitialK
	}

	// Step 5: per-collection parallel search.
	searchStart := time.Now()
	sem := semaphore.NewWeighted(maxCollectionConcurrency)
	sg, sgctx := errgroup.WithContext(ctx)
	resultsByCollection := make([][]vectorstore.Result, len(collections))
	usedHybrid := false

	for i, col := range collections {
		i, col := i, col
		sg.Go(func() error {
			if err := sem.Acquire(sgctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			opts := vectorstore.SearchOpts{
				TopK:      initialK,
				Threshold: req.Threshold,
				Filter: vectorstore.Filter{
					DatasetIDs: []int64{col.DatasetID},
					Repo:       req.Repo,
					Lang:       req.Lang,
					PathPrefix: req.PathPrefix,
				},
			}

			var res []vectorstore.Result
			var err error
			if cfg.EnableHybrid && col.Hybrid && sparse != nil {
				res, err = e.Vec.HybridQuery(sgctx, col.Name, dense, sparse, opts, cfg.DenseWeight, cfg.SparseWeight)
				usedHybrid = true
			} else {
				res, err = e.Vec.Search(sgctx, col.Name, dense, opts)
			}
			if err != nil {
				log.Warn().Err(err).Str("collection", col.Name).Msg("query: collection search failed, skipping")
				return nil
			}
			resultsByCollection[i] = res
			return nil
		})
	}
	sg.Wait() // best-effort: per-collection errors are already swallowed above

	// Step 6: aggregation by max score per document id. rankScore picks the
	// fused hybrid score when present so hybrid collections rank on the
	// fused value, not the dense-only score carried in VectorScore.
	byID := make(map[string]vectorstore.Result)
	for _, res := range resultsByCollection {
		for _, r := range res {
			cur, ok := byID[r.Chunk.ID]
			if !ok || rankScore(r) > rankScore(cur) {
				byID[r.Chunk.ID] = r
			}
		}
	}
	merged := make([]vectorstore.Result, 0, len(byID))
	for _, r := range byID {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if rankScore(merged[i]) != rankScore(merged[j]) {
			return rankScore(merged[i]) > rankScore(merged[j])
		}
		return merged[i].Chunk.ID < merged[j].Chunk.ID
	})
	searchMS := time.Since(searchStart).Milliseconds()

	// Step 7: optional rerank.
	var rerankMS int64
	method := models.RetrievalDense
	if usedHybrid {
		method = models.RetrievalHybrid
	}
	var rerankScores map[string]float64
	if cfg.EnableRerank && e.Rerank != nil && len(merged) > 0 {
		rerankStart := time.Now()
		candidateCap := cfg.RerankCandidateCap
		if candidateCap > len(merged) {
			candidateCap = len(merged)
		}
		candidates := merged[:candidateCap]
		texts := make([]string, len(candidates))
		for i, r := range candidates {
			texts[i] = truncate(r.Chunk.RelativePath+"\n"+r.Chunk.Content, cfg.RerankTextMaxChars)
		}
		scores, err := e.Rerank.Rerank(ctx, req.Query, texts)
		if err != nil {
			log.Warn().Err(err).Msg("query: rerank failed, keeping vector ordering")
		} else if len(scores) == len(candidates) {
			rerankScores = make(map[string]float64, len(candidates))
			for i, c := range candidates {
				rerankScores[c.Chunk.ID] = scores[i]
			}
			if method == models.RetrievalHybrid {
				method = models.RetrievalHybridRerank
			} else {
				method = models.RetrievalRerank
			}
		}
		rerankMS = time.Since(rerankStart).Milliseconds()
	}

	if rerankScores != nil {
		sort.SliceStable(merged, func(i, j int) bool {
			si, iok := rerankScores[merged[i].Chunk.ID]
			sj, jok := rerankScores[merged[j].Chunk.ID]
			if !iok {
				si = rankScore(merged[i])
			}
			if !jok {
				sj = rankScore(merged[j])
			}
			if si != sj {
				return si > sj
			}
			return merged[i].Chunk.ID < merged[j].Chunk.ID
		})
	}

	// Step 8: trim to final_k.
	finalK := topK
	if len(merged) > finalK {
		merged = merged[:finalK]
	}

	// Step 9: response assembly.
	results := make([]models.SearchResult, len(merged))
	for i, r := range merged {
		sc := models.Scores{Vector: r.VectorScore, Final: rankScore(r)}
		if r.SparseScore != nil {
			sc.Sparse = r.SparseScore
		}
		if rs, ok := rerankScores[r.Chunk.ID]; ok {
			sc.Rerank = &rs
			sc.Final = rs
		}
		results[i] = models.SearchResult{
			ID:        r.Chunk.ID,
			Chunk:     r.Chunk,
			File:      r.Chunk.RelativePath,
			LineSpan:  [2]int{r.Chunk.StartLine, r.Chunk.EndLine},
			Scores:    sc,
			ProjectID: r.Chunk.ProjectID,
			DatasetID: r.Chunk.DatasetID,
			Repo:      r.Chunk.Repo,
			Lang:      r.Chunk.Language,
			Symbol:    r.Chunk.Symbol,
		}
	}

	features := []string{"dense"}
	if usedHybrid {
		features = append(features, "hybrid")
	}
	if rerankScores != nil {
		features = append(features, "rerank")
	}

	return models.QueryResponse{
		Results: results,
		Metadata: models.ResponseMetadata{
			RetrievalMethod: method,
			Timing: models.Timing{
				EmbeddingMS: embeddingMS,
				SearchMS:    searchMS,
				RerankMS:    rerankMS,
				TotalMS:     time.Since(start).Milliseconds(),
			},
			FeaturesUsed: features,
			SearchParams: models.SearchParams{
				InitialK:     initialK,
				FinalK:       finalK,
				DenseWeight:  ptr(cfg.DenseWeight),
				SparseWeight: ptr(cfg.SparseWeight),
			},
		},
	}, nil
}

func emptyResponse(cfg Config, topK int) models.QueryResponse {
	return models.QueryResponse{
		Results: nil,
		Metadata: models.ResponseMetadata{
			RetrievalMethod: models.RetrievalDense,
			FeaturesUsed:    []string{},
			SearchParams:    models.SearchParams{InitialK: topK, FinalK: topK},
		},
		Message: "no accessible datasets matched the request",
	}
}

func errorResponse(msg string) models.QueryResponse {
	return models.QueryResponse{Message: msg, IsError: true}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func ptr(f float64) *float64 { return &f }

// rankScore is the score a result should be ranked by: the fused
// dense+sparse value when hybrid search produced one, the dense cosine
// score otherwise (spec §4.9 Fusion).
func rankScore(r vectorstore.Result) float64 {
	if r.SparseScore != nil {
		return *r.SparseScore
	}
	return r.VectorScore
}
