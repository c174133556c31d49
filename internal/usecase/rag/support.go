package rag

import (
	"context"

	"go.uber.org/zap"

	"github.com/spin-glass/papers-rag-agent/internal/index"
)

// supportScore quantifies how well the retrieved contexts back the query.
// It embeds the query once and takes the maximum cosine similarity across
// all context embeddings. A single strongly relevant document is sufficient
// evidence even if the rest are noise, so max, not mean.
//
// Returns 0.0 on empty contexts or query-embedding failure; scoring never
// errors out to the caller.
func (s *Service) supportScore(ctx context.Context, query string, contexts []index.RetrievedContext) float64 {
	if len(contexts) == 0 {
		return 0.0
	}

	res, err := s.embed.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("support scoring: query embedding failed", zap.Error(err))
		return 0.0
	}

	var best float64
	for _, c := range contexts {
		if len(c.Embedding) == 0 {
			continue
		}
		if sim := index.Cosine(res.Embedding, c.Embedding); sim > best {
			best = sim
		}
	}
	return best
}
