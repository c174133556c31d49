// Command indexcache builds the paper index offline and stores the
// snapshot in the cache, so API instances start warm.
package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spin-glass/papers-rag-agent/internal/config"
	dbRedis "github.com/spin-glass/papers-rag-agent/internal/db/redis"
	"github.com/spin-glass/papers-rag-agent/internal/index"
	logpkg "github.com/spin-glass/papers-rag-agent/internal/logger"
	"github.com/spin-glass/papers-rag-agent/internal/metrics"
	"github.com/spin-glass/papers-rag-agent/internal/repository/embcache"
	"github.com/spin-glass/papers-rag-agent/internal/repository/indexcache"
	"github.com/spin-glass/papers-rag-agent/internal/transport/arxiv"
	openaiTransport "github.com/spin-glass/papers-rag-agent/internal/transport/openai"
	corpusuc "github.com/spin-glass/papers-rag-agent/internal/usecase/corpus"
	"github.com/spin-glass/papers-rag-agent/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Building index snapshot",
		zap.String("version", version.Version),
		zap.String("env", env),
	)

	if !cfg.Cache.Enabled() {
		logger.Fatal("cache.addrs must be configured to store a snapshot")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Cache.Addrs,
		Username: cfg.Cache.Username,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Cache store not ready", zap.Error(err))
	}

	metrics.RegisterLLMMetrics()
	metrics.RegisterRagMetrics()

	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.EmbeddingModel,
		Dimensions: cfg.LLM.Dimensions,
		Provider:   cfg.LLM.Provider,
		Logger:     logger,
	})
	embedder := embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)

	arxivClient := arxiv.NewClient(&arxiv.Config{
		BaseURL: cfg.Corpus.ArxivBaseURL,
		Timeout: time.Duration(cfg.Corpus.ArxivTimeoutSec) * time.Second,
		Logger:  logger,
	})

	ttl := time.Duration(cfg.Cache.SnapshotTTLHours) * time.Hour
	snapshots := indexcache.NewStore(store, ttl, logger)

	holder := index.NewHolder()
	corpusSvc := corpusuc.NewService(arxivClient, snapshots, embedder, holder, corpusuc.Config{
		Queries:          cfg.Corpus.Queries,
		PerQuery:         cfg.Corpus.PerQuery,
		FallbackQueries:  cfg.Corpus.FallbackQueries,
		FallbackPerQuery: cfg.Corpus.FallbackPerQuery,
	}, logger)

	start := time.Now()
	n, err := corpusSvc.Rebuild(ctx)
	if err != nil {
		logger.Fatal("Snapshot build failed", zap.Error(err))
	}

	logger.Info("Snapshot stored",
		zap.Int("papers", n),
		zap.Duration("took", time.Since(start)),
	)
}
