package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spin-glass/papers-rag-agent/internal/config"
	"github.com/spin-glass/papers-rag-agent/internal/db"
	dbRedis "github.com/spin-glass/papers-rag-agent/internal/db/redis"
	"github.com/spin-glass/papers-rag-agent/internal/domain"
	"github.com/spin-glass/papers-rag-agent/internal/index"
	logpkg "github.com/spin-glass/papers-rag-agent/internal/logger"
	"github.com/spin-glass/papers-rag-agent/internal/metrics"
	"github.com/spin-glass/papers-rag-agent/internal/repository/embcache"
	"github.com/spin-glass/papers-rag-agent/internal/repository/indexcache"
	"github.com/spin-glass/papers-rag-agent/internal/transport/arxiv"
	chiTransport "github.com/spin-glass/papers-rag-agent/internal/transport/chi"
	openaiTransport "github.com/spin-glass/papers-rag-agent/internal/transport/openai"
	corpusuc "github.com/spin-glass/papers-rag-agent/internal/usecase/corpus"
	healthuc "github.com/spin-glass/papers-rag-agent/internal/usecase/health"
	hydeuc "github.com/spin-glass/papers-rag-agent/internal/usecase/hyde"
	raguc "github.com/spin-glass/papers-rag-agent/internal/usecase/rag"
	"github.com/spin-glass/papers-rag-agent/internal/version"
)

func main() {
	// Load configuration based on ENV
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

	logger.Info("Starting papers-rag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Bool("cache_enabled", cfg.Cache.Enabled()),
	)

	// Optional Redis cache store
	var store db.Store
	if cfg.Cache.Enabled() {
		store, err = dbRedis.NewStore(dbRedis.Config{
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
		logger.Info("Connected to cache store")
	}

	// Register metrics explicitly (no init())
	metrics.RegisterLLMMetrics()
	metrics.RegisterRagMetrics()

	embedder := buildEmbedder(cfg.LLM, store, logger)
	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.ChatModel,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Provider:    cfg.LLM.Provider,
		Logger:      logger,
	})
	logger.Info("LLM transports created",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("embedding_model", cfg.LLM.EmbeddingModel),
		zap.String("chat_model", cfg.LLM.ChatModel),
	)

	holder := index.NewHolder()

	arxivClient := arxiv.NewClient(&arxiv.Config{
		BaseURL: cfg.Corpus.ArxivBaseURL,
		Timeout: time.Duration(cfg.Corpus.ArxivTimeoutSec) * time.Second,
		Logger:  logger,
	})

	// Pass nil interface (not typed nil pointer!) if no cache is configured.
	// Go gotcha: (*indexcache.Store)(nil) wrapped in SnapshotStore != nil.
	var snapshots corpusuc.SnapshotStore
	if store != nil {
		ttl := time.Duration(cfg.Cache.SnapshotTTLHours) * time.Hour
		snapshots = indexcache.NewStore(store, ttl, logger)
	}

	corpusSvc := corpusuc.NewService(arxivClient, snapshots, embedder, holder, corpusuc.Config{
		Queries:          cfg.Corpus.Queries,
		PerQuery:         cfg.Corpus.PerQuery,
		FallbackQueries:  cfg.Corpus.FallbackQueries,
		FallbackPerQuery: cfg.Corpus.FallbackPerQuery,
	}, logger)

	hydeSvc := hydeuc.NewService(generator, logger)
	ragSvc := raguc.NewService(holder, embedder, generator, hydeSvc, raguc.Config{
		SupportThreshold: cfg.RAG.SupportThreshold,
		TopK:             cfg.RAG.TopK,
	}, logger)

	var dbPinger healthuc.DBPinger
	if store != nil {
		dbPinger = store
	}
	healthSvc := healthuc.New(dbPinger, newEmbeddingHealthChecker(embedder), holder)

	// Load the corpus in the background; /api/v1/ask answers 503 until done.
	go func() {
		start := time.Now()
		if err := corpusSvc.Load(context.Background()); err != nil {
			if errors.Is(err, domain.ErrCorpusUnavailable) {
				logger.Warn("Corpus unavailable at startup, serving 503 until rebuild")
				return
			}
			logger.Error("Initial index load failed", zap.Error(err))
			return
		}
		logger.Info("Initial index loaded",
			zap.Int("papers", holder.Len()),
			zap.Duration("took", time.Since(start)))
	}()

	server := chiTransport.NewServer(ragSvc, corpusSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached.
func buildEmbedder(llm config.LLMConfig, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     llm.APIKey,
		BaseURL:    llm.BaseURL,
		Model:      llm.EmbeddingModel,
		Dimensions: llm.Dimensions,
		Provider:   llm.Provider,
		Logger:     logger,
	})

	if store == nil {
		return base
	}
	return embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
