// Package index provides the in-memory similarity index over embedded papers.
package index

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/spin-glass/papers-rag-agent/internal/domain"
)

// RetrievedContext is a per-search projection of an indexed paper.
// It carries the stored embedding forward so support scoring can reuse it.
type RetrievedContext struct {
	PaperID   string
	Title     string
	Link      string
	Summary   string
	Embedding []float32
	Score     float64
}

type entry struct {
	paper     domain.Paper
	embedding []float32
}

// Index holds (paper, embedding) pairs and answers top-k cosine queries.
// Read-only after Build/Reconstruct; concurrent Search needs no locking.
type Index struct {
	entries []entry
	embed   domain.Embedder
	logger  *zap.Logger
}

// New creates an empty index backed by the given embedder.
func New(embed domain.Embedder, logger *zap.Logger) *Index {
	return &Index{embed: embed, logger: logger}
}

// Build embeds title+summary for each paper and stores the pairs.
// Papers whose embedding request fails are logged and skipped; the build
// itself never fails. An empty corpus yields a valid empty index.
func (ix *Index) Build(ctx context.Context, papers []domain.Paper) {
	ix.entries = make([]entry, 0, len(papers))

	for _, p := range papers {
		res, err := ix.embed.Embed(ctx, p.EmbeddingText())
		if err != nil {
			ix.logger.Warn("skipping paper: embedding failed",
				zap.String("paper_id", p.ID), zap.Error(err))
			continue
		}
		ix.entries = append(ix.entries, entry{paper: p, embedding: res.Embedding})
	}

	ix.logger.Info("index built",
		zap.Int("papers", len(papers)), zap.Int("embedded", len(ix.entries)))
}

// Reconstruct restores an index from precomputed (paper, embedding) pairs,
// e.g. a cache snapshot. Pairs are taken as-is; lengths must match.
func Reconstruct(papers []domain.Paper, embeddings [][]float32, embed domain.Embedder, logger *zap.Logger) *Index {
	n := len(papers)
	if len(embeddings) < n {
		n = len(embeddings)
	}
	ix := &Index{embed: embed, logger: logger, entries: make([]entry, 0, n)}
	for i := 0; i < n; i++ {
		ix.entries = append(ix.entries, entry{paper: papers[i], embedding: embeddings[i]})
	}
	return ix
}

// Len returns the number of indexed papers.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// Papers returns the indexed papers in insertion order.
func (ix *Index) Papers() []domain.Paper {
	out := make([]domain.Paper, len(ix.entries))
	for i, e := range ix.entries {
		out[i] = e.paper
	}
	return out
}

// Embeddings returns the stored embeddings in insertion order.
func (ix *Index) Embeddings() [][]float32 {
	out := make([][]float32, len(ix.entries))
	for i, e := range ix.entries {
		out[i] = e.embedding
	}
	return out
}

// Search returns the top-k papers by cosine similarity to the query.
// An empty index returns an empty slice immediately. A query-embedding
// failure is logged and returns an empty slice; retrieval never errors
// out to the caller. Ties keep insertion order (stable sort).
func (ix *Index) Search(ctx context.Context, query string, k int) []RetrievedContext {
	if ix.Len() == 0 || k <= 0 {
		return nil
	}

	res, err := ix.embed.Embed(ctx, query)
	if err != nil {
		ix.logger.Warn("query embedding failed", zap.Error(err))
		return nil
	}

	contexts := make([]RetrievedContext, len(ix.entries))
	for i, e := range ix.entries {
		contexts[i] = RetrievedContext{
			PaperID:   e.paper.ID,
			Title:     e.paper.Title,
			Link:      e.paper.Link,
			Summary:   e.paper.Summary,
			Embedding: e.embedding,
			Score:     Cosine(res.Embedding, e.embedding),
		}
	}

	sort.SliceStable(contexts, func(i, j int) bool {
		return contexts[i].Score > contexts[j].Score
	})

	if k > len(contexts) {
		k = len(contexts)
	}
	return contexts[:k]
}

// Cosine returns dot(a/‖a‖, b/‖b‖) clamped to [0,1]. Negative similarity
// is treated as zero relevance, never negative-ranked.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	// Small epsilon guards zero vectors without branching.
	sim := dot / ((math.Sqrt(normA) + 1e-8) * (math.Sqrt(normB) + 1e-8))

	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
