package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/seanblong/reposearch/internal/ai"
	"github.com/seanblong/reposearch/internal/change"
	"github.com/seanblong/reposearch/internal/config"
	"github.com/seanblong/reposearch/internal/ingest"
	"github.com/seanblong/reposearch/internal/relstore"
	"github.com/seanblong/reposearch/internal/vectorstore"
)

func buildClientConfig(cfg config.Specification) *ai.ClientConfig {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return &ai.ClientConfig{
			APIKey: cfg.APIKey, EmbedModel: cfg.EmbedModel, SummaryModel: cfg.SummaryModel,
			Dim: cfg.Dim, ProjectID: cfg.ProjectID, Provider: ai.ProviderOpenAI,
		}
	case "vertexai":
		return &ai.ClientConfig{
			APIKey: cfg.APIKey, EmbedModel: cfg.EmbedModel, SummaryModel: cfg.SummaryModel,
			Dim: cfg.Dim, ProjectID: cfg.ProjectID, Location: cfg.Location, Provider: ai.ProviderVertexAI,
		}
	default:
		return &ai.ClientConfig{Dim: cfg.Dim, Provider: ai.ProviderStub}
	}
}

func main() {
	fs := pflag.NewFlagSet("reposearch-indexer", pflag.ExitOnError)
	watch := fs.Bool("watch", false, "after the initial run, watch repo-root for changes and reindex incrementally")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	repo := cfg.RepoRoot
	gitRef := cfg.GitRef
	if cfg.RepoURL != "" {
		dir, err := cloneToTemp(cfg.RepoURL, cfg.GitRef, cfg.GithubToken)
		if err != nil {
			log.Fatalf("clone failed: %v", err)
		}
		repo = dir
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				log.Printf("failed to remove temp directory %s: %v", dir, err)
			}
		}()
	} else {
		parts := strings.Split(strings.TrimRight(repo, "/"), string(os.PathSeparator))
		gitRef = parts[len(parts)-1]
	}

	log.Printf("using provider: %s", cfg.Provider)

	client, err := ai.NewClient(buildClientConfig(cfg))
	if err != nil {
		log.Fatalf("failed to create AI client: %v", err)
	}
	dim := client.Dim()
	if dim == 0 {
		log.Fatal("embedding dimension must be set")
	}

	ctx := context.Background()

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

	orch := &ingest.Orchestrator{
		Rel:    rel,
		Vec:    vec,
		Embed:  buildEmbedCoordinator(client, sparse, cfg),
		Code:   buildCodeChunker(cfg),
		Web:    buildWebChunker(cfg),
		Dim:    dim,
		Hybrid: cfg.Retrieval.EnableHybridSearch,
	}

	job := ingest.Job{
		CodebasePath: repo,
		Project:      cfg.RepoURL,
		Dataset:      gitRef,
		Provenance:   ingest.Provenance{Repo: cfg.RepoURL, Branch: gitRef},
	}
	if job.Project == "" {
		job.Project = "local"
	}

	result, err := orch.Run(ctx, job, func(ev ingest.ProgressEvent) {
		log.Printf("%s: %d/%d (%.0f%%)", ev.Phase, ev.Current, ev.Total, ev.Percentage)
	})
	if err != nil {
		log.Fatalf("index run failed: %v", err)
	}
	log.Printf("indexed %d files, %d chunks, status=%s", result.IndexedFiles, result.TotalChunks, result.Status)

	if *watch {
		runWatch(ctx, orch, job, repo)
	}
}

// runWatch keeps reindexing job incrementally as repo changes on disk, until
// the process receives an interrupt/terminate signal. Grounded on the
// remembrances-mcp CodeWatcher's debounce loop; here a debounced burst
// re-runs the full incremental pipeline rather than a single file, since
// change.Detect already re-walks the tree each call.
func runWatch(ctx context.Context, orch *ingest.Orchestrator, job ingest.Job, repo string) {
	ignore, err := change.BuildIgnoreSet(repo, "")
	if err != nil {
		log.Fatalf("watch: failed to build ignore set: %v", err)
	}
	watcher, err := change.NewWatcher(repo, ignore, 750*time.Millisecond)
	if err != nil {
		log.Fatalf("watch: failed to start filesystem watcher: %v", err)
	}
	defer watcher.Close()

	watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("watching %s for changes (ctrl-c to stop)", repo)
	watcher.Run(watchCtx, func() {
		result, err := orch.ReindexByChange(watchCtx, job, func(ev ingest.ProgressEvent) {
			log.Printf("%s: %d/%d (%.0f%%)", ev.Phase, ev.Current, ev.Total, ev.Percentage)
		})
		if err != nil {
			log.Printf("watch: incremental reindex failed: %v", err)
			return
		}
		log.Printf("watch: reindexed %d files, %d chunks, status=%s", result.IndexedFiles, result.TotalChunks, result.Status)
	})
}

func cloneToTemp(repoURL, ref, token string) (string, error) {
	dir, err := os.MkdirTemp("", "reposearch-*")
	if err != nil {
		return "", err
	}
	url := repoURL
	if token != "" && strings.HasPrefix(url, "https://") {
		url = "https://" + token + ":x-oauth-basic@" + strings.TrimPrefix(url, "https://")
	}
	cmd := exec.Command("git", "clone", "--depth", "1", "--branch", ref, url, dir)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Printf("failed to remove temp directory %s: %v", dir, rmErr)
		}
		return "", fmt.Errorf("git clone: %w", err)
	}
	return dir, nil
}
