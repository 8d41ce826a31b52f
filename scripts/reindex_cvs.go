package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"cvmatcher/backend/internal/config"
	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/repositories"
	"cvmatcher/backend/internal/services"
)

// Rebuilds the Qdrant index from the CV text stored in the database. Run it
// after changing the embedding model or dimension, or after losing the
// collection.
func main() {
	batch := flag.Int("batch", 100, "CVs loaded per page")
	flag.Parse()

	cfg := config.Load()
	log, err := logger.New(cfg.Server.LogJSON, cfg.Server.LogDebug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if !cfg.SearchEnabled() {
		log.Fatal("semantic search is not configured; set GEMINI_API_KEY and QDRANT_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}

	embedder, err := services.NewGeminiEmbedder(ctx, cfg.Search.GeminiAPIKey, cfg.Search.EmbeddingModel, cfg.Search.EmbeddingDim, llm.NewHTTPClient(0))
	if err != nil {
		log.Fatal("failed to initialize embedder", zap.Error(err))
	}

	store, err := services.NewQdrantStore(cfg.Search.QdrantURL, cfg.Search.QdrantAPIKey, cfg.Search.QdrantCollection, cfg.Search.EmbeddingDim, log)
	if err != nil {
		log.Fatal("failed to initialize qdrant", zap.Error(err))
	}
	if err := store.EnsureCollection(ctx); err != nil {
		log.Fatal("failed to initialize collection", zap.Error(err))
	}

	search := services.NewSearchService(embedder, store, log)
	stats, err := services.ReindexCVs(ctx, repositories.NewCVRepository(db), search, *batch, log)
	if err != nil {
		log.Fatal("reindex aborted", zap.Error(err), zap.Int("indexed", stats.Indexed))
	}

	log.Info("reindex finished",
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
}
