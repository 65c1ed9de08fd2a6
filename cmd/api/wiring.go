package main

import (
	"github.com/seanblong/reposearch/internal/ai"
	"github.com/seanblong/reposearch/internal/chunk"
	"github.com/seanblong/reposearch/internal/config"
	"github.com/seanblong/reposearch/internal/embed"
)

func buildEmbedCoordinator(client ai.Client, sparse ai.SparseEncoder, cfg config.Specification) *embed.Coordinator {
	return embed.NewCoordinator(
		ai.DenseAdapter{Client: client},
		ai.SparseAdapter{Encoder: sparse},
		embed.Config{
			BatchSize:            cfg.Retrieval.EmbeddingBatchSize,
			MaxConcurrentBatches: cfg.Retrieval.MaxConcurrentBatches,
			MaxChunksPerJob:      cfg.Retrieval.MaxChunksPerJob,
		},
	)
}

func buildCodeChunker(cfg config.Specification) *chunk.CodeChunker {
	return chunk.NewCodeChunker(chunk.Options{
		CharTarget:  cfg.Retrieval.ChunkCharTarget,
		CharOverlap: cfg.Retrieval.ChunkCharOverlap,
	})
}

func buildWebChunker(cfg config.Specification) *chunk.WebChunker {
	return chunk.NewWebChunker(buildCodeChunker(cfg), chunk.Options{
		CharTarget:  cfg.Retrieval.ChunkCharTarget,
		CharOverlap: cfg.Retrieval.ChunkCharOverlap,
	})
}
