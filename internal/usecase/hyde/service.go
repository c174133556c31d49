// Package hyde rewrites questions into hypothetical-document queries.
//
// Document-to-document embedding similarity is usually stronger than
// question-to-document similarity, so retrieval with a fake "ideal paper
// abstract" often finds documents the raw question misses.
package hyde

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spin-glass/papers-rag-agent/internal/domain"
)

const rewritePromptTemplate = `Generate a hypothetical academic paper summary (150-250 words) that would contain the information needed to answer this question: %q

Write as if you're summarizing a research paper that directly addresses this question. Include:
- Technical terms and methodology keywords relevant to the question
- Specific concepts, algorithms, or approaches that would be discussed
- Academic language typical of research abstracts

Focus on creating searchable content rather than answering the question directly.

Question: %s

Hypothetical paper summary:`

// Service generates alternate retrieval queries via a text generator.
type Service struct {
	gen    domain.Generator
	logger *zap.Logger
}

// NewService creates the rewriter.
func NewService(gen domain.Generator, logger *zap.Logger) *Service {
	return &Service{gen: gen, logger: logger}
}

// Rewrite produces a hypothetical paper summary for the question.
// Failures wrap domain.ErrRewriteFailed; the caller decides whether to
// fall back, this service never retries.
func (s *Service) Rewrite(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(rewritePromptTemplate, question, question)

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRewriteFailed, err)
	}

	query := strings.TrimSpace(text)
	if query == "" {
		return "", fmt.Errorf("%w: generator returned empty rewrite", domain.ErrRewriteFailed)
	}

	s.logger.Debug("question rewritten",
		zap.Int("question_len", len(question)), zap.Int("query_len", len(query)))
	return query, nil
}
