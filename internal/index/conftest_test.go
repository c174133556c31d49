package index

import (
	"context"
	"errors"

	"github.com/spin-glass/papers-rag-agent/internal/domain"
)

// fakeEmbedder returns canned vectors keyed by exact text.
type fakeEmbedder struct {
	vectors map[string][]float32
	failOn  map[string]bool
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.failOn[text] {
		return domain.EmbeddingResult{}, errors.New("boom: " + text)
	}
	vec, ok := f.vectors[text]
	if !ok {
		return domain.EmbeddingResult{}, errors.New("no vector for: " + text)
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

func paper(id, title, summary string) domain.Paper {
	return domain.Paper{ID: id, Title: title, Link: "https://arxiv.org/abs/" + id, Summary: summary}
}
