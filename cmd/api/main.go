package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/seanblong/reposearch/internal/ai"
	"github.com/seanblong/reposearch/internal/auth"
	"github.com/seanblong/reposearch/internal/config"
	"github.com/seanblong/reposearch/internal/dataset"
	"github.com/seanblong/reposearch/internal/ingest"
	"github.com/seanblong/reposearch/internal/query"
	"github.com/seanblong/reposearch/internal/relstore"
	"github.com/seanblong/reposearch/internal/status"
	"github.com/seanblong/reposearch/internal/vectorstore"
	"github.com/seanblong/reposearch/pkg/models"
)

func buildClientConfig(cfg config.Specification) *ai.ClientConfig {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return &ai.ClientConfig{
			APIKey: cfg.APIKey, EmbedModel: cfg.EmbedModel, SummaryModel: cfg.SummaryModel,
			Dim: cfg.Dim, ProjectID: cfg.ProjectID, Provider: ai.ProviderOpenAI,
		}
	case "vertexai", "google":
		return &ai.ClientConfig{
			APIKey: cfg.APIKey, EmbedModel: cfg.EmbedModel, SummaryModel: cfg.SummaryModel,
			Dim: cfg.Dim, ProjectID: cfg.ProjectID, Location: cfg.Location, Provider: ai.ProviderVertexAI,
		}
	default:
		return &ai.ClientConfig{Dim: cfg.Dim, Provider: ai.ProviderStub}
	}
}

func main() {
	fs := pflag.NewFlagSet("reposearch-api", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("invalid log level %q: %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Bool("auth_enabled", cfg.Auth.Enabled).
		Bool("hybrid_search", cfg.Retrieval.EnableHybridSearch).Msg("starting reposearch api")

	auth.InitializeAuth(cfg.Auth.JwtSecret, cfg.Auth.GithubClientID, cfg.Auth.GithubClientSecret,
		cfg.Auth.GithubRedirectURL, cfg.Auth.GithubAllowedOrg, cfg.Auth.Enabled)

	ctx := context.Background()

	client, err := ai.NewClient(buildClientConfig(cfg))
	if err != nil {
		log.Fatalf("failed to create AI client: %v", err)
	}
	dim := client.Dim()

	vec, err := vectorstore.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect vector store: %v", err)
	}
	defer vec.Close()
	if err := vec.Migrate(ctx, dim); err != nil {
		log.Fatalf("failed to migrate vector store: %v", err)
	}

	rel, err := relstore.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect relational store: %v", err)
	}
	defer rel.Close()
	if err := rel.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate relational store: %v", err)
	}

	var sparse ai.SparseEncoder = ai.NoopSparseEncoder{}
	if cfg.Retrieval.EnableHybridSearch && cfg.Retrieval.SparseEncoderURL != "" {
		sparse = ai.NewHTTPSparseEncoder(cfg.Retrieval.SparseEncoderURL, cfg.APIKey)
	}
	var reranker ai.Reranker
	if cfg.Retrieval.EnableReranking && cfg.Retrieval.RerankerURL != "" {
		reranker = ai.NewHTTPReranker(cfg.Retrieval.RerankerURL, cfg.APIKey)
	}

	engine := &query.Engine{
		Rel:      rel,
		Vec:      vec,
		Dense:    ai.DenseAdapter{Client: client},
		Sparse:   sparse,
		Rerank:   reranker,
		Resolver: dataset.NewResolver(),
		Cfg: query.Config{
			EnableHybrid:       cfg.Retrieval.EnableHybridSearch,
			EnableRerank:       cfg.Retrieval.EnableReranking,
			DenseWeight:        cfg.Retrieval.HybridDenseWeight,
			SparseWeight:       cfg.Retrieval.HybridSparseWeight,
			RerankInitialK:     cfg.Retrieval.RerankInitialK,
			RerankCandidateCap: cfg.Retrieval.RerankCandidateLimit,
			RerankTextMaxChars: cfg.Retrieval.RerankTextMaxChars,
		},
	}

	statusSvc := &status.Service{Rel: rel}

	orch := &ingest.Orchestrator{
		Rel:    rel,
		Vec:    vec,
		Embed:  buildEmbedCoordinator(client, sparse, cfg),
		Code:   buildCodeChunker(cfg),
		Web:    buildWebChunker(cfg),
		Dim:    dim,
		Hybrid: cfg.Retrieval.EnableHybridSearch,
	}
	progressBroker := ingest.NewBroker()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	mux.HandleFunc("/auth/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]bool{"enabled": auth.IsAuthEnabled()})
	})

	if auth.IsAuthEnabled() {
		registerAuthRoutes(mux)
	} else {
		logger.Info().Msg("authentication is disabled - running in open mode")
	}

	mux.HandleFunc("/search", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		q := r.URL.Query().Get("q")
		if strings.TrimSpace(q) == "" {
			http.Error(w, "missing query parameter q", http.StatusBadRequest)
			return
		}
		k := 10
		if v := r.URL.Query().Get("k"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				k = n
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		resp, err := engine.Query(ctx, query.Request{
			Project:         r.URL.Query().Get("project"),
			DatasetSelector: splitCSV(r.URL.Query().Get("datasets")),
			Query:           q,
			TopK:            k,
			Repo:            r.URL.Query().Get("repo"),
			Lang:            r.URL.Query().Get("lang"),
			PathPrefix:      r.URL.Query().Get("path_prefix"),
			IncludeGlobal:   true,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, resp)

		hlog.FromRequest(r).Info().Str("path", "/search").Str("q", q).
			Int("results", len(resp.Results)).Dur("dur", time.Since(start)).Msg("served")
	}))

	mux.HandleFunc("/index", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var job ingest.Job
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		jobID := uuid.NewString()
		runCtx := context.WithoutCancel(r.Context())
		go func() {
			defer progressBroker.Done(jobID)
			result, err := orch.Run(runCtx, job, func(evt ingest.ProgressEvent) {
				progressBroker.Publish(jobID, evt)
			})
			if err != nil {
				logger.Error().Err(err).Str("job_id", jobID).Msg("ingest job failed")
				return
			}
			logger.Info().Str("job_id", jobID).Int("files", result.IndexedFiles).
				Int("chunks", result.TotalChunks).Str("status", string(result.Status)).Msg("ingest job finished")
		}()

		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]string{"job_id": jobID, "progress_url": "/index/progress?job=" + jobID})
	}))

	registerProgressRoute(mux, progressBroker, logger)

	mux.HandleFunc("/index/status", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		codebasePath := r.URL.Query().Get("path")
		project := r.URL.Query().Get("project")
		ds := r.URL.Query().Get("dataset")
		details := r.URL.Query().Get("details") == "true"
		if codebasePath == "" || project == "" || ds == "" {
			http.Error(w, "path, project and dataset are required", http.StatusBadRequest)
			return
		}
		st, err := statusSvc.CheckIndex(r.Context(), codebasePath, project, ds, details)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, st)
	}))

	mux.HandleFunc("/datasets/shares", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var share models.ProjectShare
			if err := json.NewDecoder(r.Body).Decode(&share); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			share.ResourceType = "dataset"
			if err := rel.CreateShare(r.Context(), share); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			fromProject, _ := strconv.ParseInt(r.URL.Query().Get("from_project_id"), 10, 64)
			toProject, _ := strconv.ParseInt(r.URL.Query().Get("to_project_id"), 10, 64)
			datasetID, _ := strconv.ParseInt(r.URL.Query().Get("dataset_id"), 10, 64)
			if err := rel.RevokeShare(r.Context(), fromProject, toProject, "dataset", datasetID); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).
				Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	addr := ":" + strconv.Itoa(cfg.Port)
	srv := &http.Server{Addr: addr, Handler: handler}
	logger.Info().Str("addr", srv.Addr).Msg("api server listening")
	log.Fatal(srv.ListenAndServe())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
