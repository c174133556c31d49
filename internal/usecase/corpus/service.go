// Package corpus builds the similarity index from cached snapshots or
// live paper searches, and swaps it into the active holder.
package corpus

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spin-glass/papers-rag-agent/internal/db"
	"github.com/spin-glass/papers-rag-agent/internal/domain"
	"github.com/spin-glass/papers-rag-agent/internal/index"
	"github.com/spin-glass/papers-rag-agent/internal/metrics"
)

// Seed queries used when none are configured. Skewed toward the
// transformer/LLM literature the default deployment answers questions about.
var defaultQueries = []string{
	"transformer attention mechanism language",
	"BERT GPT language model pre-training",
	"fine-tuning RLHF instruction following",
	"efficient transformer attention flash",
	"language model evaluation benchmark",
	"neural machine translation attention",
	"pre-trained language representation",
	"self-attention multi-head transformer",
}

var defaultFallbackQueries = []string{"transformer", "attention mechanism", "BERT", "GPT"}

// Config holds corpus bootstrap settings.
type Config struct {
	Queries          []string
	PerQuery         int
	FallbackQueries  []string
	FallbackPerQuery int
}

// ApplyDefaults fills zero values with the seed query sets.
func (c *Config) ApplyDefaults() {
	if len(c.Queries) == 0 {
		c.Queries = defaultQueries
	}
	if c.PerQuery <= 0 {
		c.PerQuery = 8
	}
	if len(c.FallbackQueries) == 0 {
		c.FallbackQueries = defaultFallbackQueries
	}
	if c.FallbackPerQuery <= 0 {
		c.FallbackPerQuery = 10
	}
}

// Service loads or rebuilds the index. Rebuilds are mutually exclusive
// with each other but never block in-flight searches: readers keep the
// index reference they started with until the holder swap.
type Service struct {
	searcher  Searcher
	snapshots SnapshotStore // nil when no cache store is configured
	embed     domain.Embedder
	holder    *index.Holder
	cfg       Config
	logger    *zap.Logger

	rebuildMu sync.Mutex
}

// NewService creates the corpus loader. snapshots may be nil.
func NewService(
	searcher Searcher,
	snapshots SnapshotStore,
	embed domain.Embedder,
	holder *index.Holder,
	cfg Config,
	logger *zap.Logger,
) *Service {
	cfg.ApplyDefaults()
	return &Service{
		searcher:  searcher,
		snapshots: snapshots,
		embed:     embed,
		holder:    holder,
		cfg:       cfg,
		logger:    logger,
	}
}

// Load populates the holder at startup: cached snapshot first, then a
// dynamic build from the main queries, then the fallback queries. When
// everything fails an empty index is installed and
// domain.ErrCorpusUnavailable is returned; the caller may still serve,
// answering 503 until a rebuild succeeds.
func (s *Service) Load(ctx context.Context) error {
	if idx := s.loadSnapshot(ctx); idx != nil {
		s.install(idx)
		return nil
	}

	if idx := s.buildFromQueries(ctx, s.cfg.Queries, s.cfg.PerQuery); idx != nil {
		s.install(idx)
		s.saveSnapshot(ctx, idx)
		return nil
	}

	s.logger.Warn("main queries yielded no papers, trying fallback queries")
	if idx := s.buildFromQueries(ctx, s.cfg.FallbackQueries, s.cfg.FallbackPerQuery); idx != nil {
		s.install(idx)
		s.saveSnapshot(ctx, idx)
		return nil
	}

	s.logger.Error("failed to build index from any query set")
	s.install(index.New(s.embed, s.logger))
	return domain.ErrCorpusUnavailable
}

// Rebuild fetches the corpus again and swaps the holder on success. Only
// one rebuild runs at a time; a concurrent call gets
// domain.ErrRebuildInProgress. A failed rebuild leaves the active index
// untouched.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	if !s.rebuildMu.TryLock() {
		return 0, domain.ErrRebuildInProgress
	}
	defer s.rebuildMu.Unlock()

	idx := s.buildFromQueries(ctx, s.cfg.Queries, s.cfg.PerQuery)
	if idx == nil {
		idx = s.buildFromQueries(ctx, s.cfg.FallbackQueries, s.cfg.FallbackPerQuery)
	}
	if idx == nil {
		return 0, domain.ErrCorpusUnavailable
	}

	s.install(idx)
	s.saveSnapshot(ctx, idx)
	return idx.Len(), nil
}

func (s *Service) install(idx *index.Index) {
	s.holder.Set(idx)
	metrics.IndexDocuments.Set(float64(idx.Len()))
}

func (s *Service) loadSnapshot(ctx context.Context) *index.Index {
	if s.snapshots == nil {
		return nil
	}

	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrKeyNotFound):
			s.logger.Info("no index snapshot found, building dynamically")
		case errors.Is(err, domain.ErrSnapshotInvalid):
			s.logger.Warn("index snapshot invalid, building dynamically", zap.Error(err))
		default:
			s.logger.Warn("index snapshot load failed, building dynamically", zap.Error(err))
		}
		return nil
	}
	if len(snap.Papers) == 0 {
		s.logger.Warn("index snapshot is empty, building dynamically")
		return nil
	}

	s.logger.Info("index restored from snapshot", zap.Int("papers", len(snap.Papers)))
	return index.Reconstruct(snap.Papers, snap.Embeddings, s.embed, s.logger)
}

func (s *Service) saveSnapshot(ctx context.Context, idx *index.Index) {
	if s.snapshots == nil || idx.Len() == 0 {
		return
	}
	snap := &domain.IndexSnapshot{Papers: idx.Papers(), Embeddings: idx.Embeddings()}
	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.logger.Warn("index snapshot save failed", zap.Error(err))
	}
}

// buildFromQueries fetches papers per query, deduplicates by id in first-seen
// order, and embeds the unique set. Individual query failures are logged and
// skipped. Returns nil when no unique papers were found.
func (s *Service) buildFromQueries(ctx context.Context, queries []string, perQuery int) *index.Index {
	seen := make(map[string]struct{})
	var unique []domain.Paper

	for _, q := range queries {
		papers, err := s.searcher.SearchPapers(ctx, q, perQuery)
		if err != nil {
			s.logger.Warn("corpus query failed", zap.String("query", q), zap.Error(err))
			continue
		}
		for _, p := range papers {
			if p.ID == "" {
				continue
			}
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			unique = append(unique, p)
		}
		s.logger.Info("corpus query finished",
			zap.String("query", q), zap.Int("papers", len(papers)))
	}

	if len(unique) == 0 {
		return nil
	}

	idx := index.New(s.embed, s.logger)
	idx.Build(ctx, unique)
	return idx
}
