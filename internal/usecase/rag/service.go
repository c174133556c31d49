// Package rag implements the corrective retrieval-augmented answer loop.
package rag

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spin-glass/papers-rag-agent/internal/domain"
	"github.com/spin-glass/papers-rag-agent/internal/domain/answer"
	"github.com/spin-glass/papers-rag-agent/internal/index"
	"github.com/spin-glass/papers-rag-agent/internal/metrics"
)

const (
	// DefaultSupportThreshold is the minimum support score that counts as
	// a sufficiently grounded answer.
	DefaultSupportThreshold = 0.62
	// DefaultTopK is the number of contexts retrieved per round.
	DefaultTopK = 5
)

// Config holds the controller's tunables.
type Config struct {
	SupportThreshold float64
	TopK             int
}

// ApplyDefaults fills zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.SupportThreshold <= 0 {
		c.SupportThreshold = DefaultSupportThreshold
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
}

// Service orchestrates baseline retrieval, support evaluation, the single
// HyDE retry, and the terminal no-answer fallback.
type Service struct {
	holder   *index.Holder
	embed    domain.Embedder
	gen      domain.Generator
	rewriter Rewriter
	cfg      Config
	logger   *zap.Logger
}

// NewService creates the corrective controller.
func NewService(
	holder *index.Holder,
	embed domain.Embedder,
	gen domain.Generator,
	rewriter Rewriter,
	cfg Config,
	logger *zap.Logger,
) *Service {
	cfg.ApplyDefaults()
	return &Service{
		holder:   holder,
		embed:    embed,
		gen:      gen,
		rewriter: rewriter,
		cfg:      cfg,
		logger:   logger,
	}
}

type state int

const (
	stateBaseline state = iota
	stateEvaluate
	stateHydeRewrite
	stateEnhancedRetrieval
	stateNoAnswer
	stateDone
)

// cycle is the per-question state threaded through the machine.
// Each question gets its own cycle; nothing here is shared.
type cycle struct {
	question      string
	hydeQuery     string
	hydeAttempted bool
	attempts      []answer.Attempt
	result        *answer.Result
}

// Answer runs one corrective cycle for the question. It returns
// domain.ErrIndexNotReady when no index has been built yet; otherwise it
// always returns a well-formed result. Embedding, generation, and rewrite
// failures are recovered as degraded attempts with support 0.0 and never
// escape this entry point.
func (s *Service) Answer(ctx context.Context, question string) (*answer.Result, error) {
	idx := s.holder.Get()
	if idx.Len() == 0 {
		return nil, domain.ErrIndexNotReady
	}

	start := time.Now()
	c := &cycle{question: question}

	st := stateBaseline
	for st != stateDone {
		switch st {
		case stateBaseline:
			st = s.runBaseline(ctx, idx, c)
		case stateEvaluate:
			st = s.evaluate(c)
		case stateHydeRewrite:
			st = s.runHydeRewrite(ctx, c)
		case stateEnhancedRetrieval:
			st = s.runEnhancedRetrieval(ctx, idx, c)
		case stateNoAnswer:
			c.result = noAnswer(c.question, c.attempts)
			st = stateDone
		}
	}

	c.result.Attempts = c.attempts

	outcome := "answered"
	if c.result.Support < s.cfg.SupportThreshold {
		outcome = "no_answer"
	}
	metrics.RagAnswerDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	s.logger.Info("corrective cycle finished",
		zap.Float64("support", c.result.Support),
		zap.Int("attempts", len(c.attempts)),
		zap.String("outcome", outcome))

	return c.result, nil
}

// runBaseline runs the first retrieve+generate+score round with the raw
// question. Zero retrieved contexts short-circuit to a terminal
// no-relevant-documents result without consulting the rewriter.
func (s *Service) runBaseline(ctx context.Context, idx *index.Index, c *cycle) state {
	res, att := s.round(ctx, idx, answer.KindBaseline, c.question, c.question)
	c.attempts = append(c.attempts, att)

	if res == nil {
		c.result = &answer.Result{
			Text:      "No relevant papers were found for this question.",
			Citations: []answer.Citation{},
			Support:   0.0,
		}
		return stateDone
	}

	c.result = res
	return stateEvaluate
}

// evaluate decides the next transition. Support at or above the threshold
// is sufficient. The hydeAttempted flag is the sole loop guard: the retry
// happens at most once per question no matter how low the second score is.
func (s *Service) evaluate(c *cycle) state {
	if c.result.Support >= s.cfg.SupportThreshold {
		return stateDone
	}
	if !c.hydeAttempted {
		return stateHydeRewrite
	}
	return stateNoAnswer
}

// runHydeRewrite asks the rewriter for an alternate query. A rewrite
// failure is recorded as a degraded attempt and goes straight to the
// no-answer fallback; the rewrite itself is never retried.
func (s *Service) runHydeRewrite(ctx context.Context, c *cycle) state {
	c.hydeAttempted = true

	q, err := s.rewriter.Rewrite(ctx, c.question)
	if err != nil {
		s.logger.Warn("query rewrite failed", zap.Error(err))
		c.attempts = append(c.attempts, answer.Attempt{
			Kind:    answer.KindHyde,
			Query:   c.question,
			Support: 0.0,
			Err:     err.Error(),
		})
		return stateNoAnswer
	}

	c.hydeQuery = q
	return stateEnhancedRetrieval
}

// runEnhancedRetrieval repeats the round with the rewritten query driving
// retrieval and scoring, while the prompt still answers the original
// question. The new support score supersedes the prior one.
func (s *Service) runEnhancedRetrieval(ctx context.Context, idx *index.Index, c *cycle) state {
	res, att := s.round(ctx, idx, answer.KindHyde, c.hydeQuery, c.question)
	c.attempts = append(c.attempts, att)

	if res != nil {
		c.result = res
	}
	return stateEvaluate
}

// round is one retrieve+generate+score pass. retrievalQuery drives search
// and support scoring; promptQuestion is what the generated answer
// addresses. Returns nil when retrieval produced no contexts.
func (s *Service) round(
	ctx context.Context,
	idx *index.Index,
	kind answer.AttemptKind,
	retrievalQuery, promptQuestion string,
) (*answer.Result, answer.Attempt) {
	contexts := idx.Search(ctx, retrievalQuery, s.cfg.TopK)
	if len(contexts) == 0 {
		metrics.RagAttemptsTotal.WithLabelValues(string(kind), "empty").Inc()
		return nil, answer.Attempt{Kind: kind, Query: retrievalQuery, Support: 0.0}
	}

	ids := make([]string, len(contexts))
	for i, c := range contexts {
		ids[i] = c.PaperID
	}

	text, err := s.gen.Generate(ctx, buildAnswerPrompt(promptQuestion, contexts))
	if err != nil {
		s.logger.Warn("answer generation failed",
			zap.String("kind", string(kind)), zap.Error(err))
		metrics.RagAttemptsTotal.WithLabelValues(string(kind), "error").Inc()
		return &answer.Result{
				Text:      "An error occurred while generating the answer.",
				Citations: []answer.Citation{},
				Support:   0.0,
			}, answer.Attempt{
				Kind:    kind,
				Query:   retrievalQuery,
				TopIDs:  ids,
				Support: 0.0,
				Err:     err.Error(),
			}
	}

	support := s.supportScore(ctx, retrievalQuery, contexts)
	metrics.RagAttemptsTotal.WithLabelValues(string(kind), "ok").Inc()
	metrics.RagSupportScore.WithLabelValues(string(kind)).Observe(support)

	citations := make([]answer.Citation, 0, len(contexts))
	for _, c := range contexts {
		citations = append(citations, answer.Citation{Title: c.Title, Link: c.Link})
	}

	result := &answer.Result{
		Text:      text,
		Citations: answer.DedupCitations(citations),
		Support:   support,
	}
	att := answer.Attempt{
		Kind:    kind,
		Query:   retrievalQuery,
		TopIDs:  ids,
		Support: support,
	}
	return result, att
}
