package rag

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spin-glass/papers-rag-agent/internal/domain"
	"github.com/spin-glass/papers-rag-agent/internal/domain/answer"
	"github.com/spin-glass/papers-rag-agent/internal/index"
)

// Unit vectors chosen so cosine against the axis documents lands on
// known values: docA = (1,0,0), docB = (0,1,0).
var (
	docA = []float32{1, 0, 0}
	docB = []float32{0, 1, 0}

	queryStrong = []float32{0.9, 0, float32(math.Sqrt(1 - 0.81))}  // cos(docA) = 0.9
	queryWeak   = []float32{0.4, 0, float32(math.Sqrt(1 - 0.16))}  // cos(docA) = 0.4
	queryMedium = []float32{0.7, 0, float32(math.Sqrt(1 - 0.49))}  // cos(docA) = 0.7
	queryLow    = []float32{0.5, 0, float32(math.Sqrt(1 - 0.25))}  // cos(docA) = 0.5
)

const supportTolerance = 1e-4

func twoDocs() []testDoc {
	return []testDoc{
		{id: "1706.03762", title: "Attention Is All You Need", embedding: docA},
		{id: "1810.04805", title: "BERT", embedding: docB},
	}
}

func TestAnswer_IndexNotReady(t *testing.T) {
	holder := index.NewHolder()
	svc := NewService(holder, &fakeEmbedder{}, &fakeGenerator{}, &fakeRewriter{}, Config{}, zap.NewNop())

	_, err := svc.Answer(context.Background(), "anything")
	if !errors.Is(err, domain.ErrIndexNotReady) {
		t.Fatalf("expected ErrIndexNotReady, got %v", err)
	}
}

func TestAnswer_BaselineSufficient(t *testing.T) {
	fe := &fakeEmbedder{vectors: map[string][]float32{"what is attention?": queryStrong}}
	gen := &fakeGenerator{texts: []string{"attention explained"}}
	rw := &fakeRewriter{query: "should not be used"}
	svc := newTestService(t, twoDocs(), fe, gen, rw, Config{SupportThreshold: 0.62, TopK: 2})

	res, err := svc.Answer(context.Background(), "what is attention?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Text != "attention explained" {
		t.Errorf("unexpected text: %q", res.Text)
	}
	if math.Abs(res.Support-0.9) > supportTolerance {
		t.Errorf("expected support ~0.9, got %f", res.Support)
	}
	if len(res.Attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(res.Attempts))
	}
	if res.Attempts[0].Kind != answer.KindBaseline {
		t.Errorf("expected baseline attempt, got %s", res.Attempts[0].Kind)
	}
	if got := res.Attempts[0].TopIDs; len(got) != 2 || got[0] != "1706.03762" {
		t.Errorf("unexpected top ids: %v", got)
	}
	if len(res.Citations) > 2 {
		t.Errorf("expected at most 2 citations, got %d", len(res.Citations))
	}
	if rw.calls != 0 {
		t.Errorf("rewriter must not run when baseline is sufficient, ran %d times", rw.calls)
	}
}

func TestEvaluate_ThresholdBoundary(t *testing.T) {
	svc := NewService(index.NewHolder(), &fakeEmbedder{}, &fakeGenerator{}, &fakeRewriter{},
		Config{SupportThreshold: 0.62}, zap.NewNop())

	c := &cycle{result: &answer.Result{Support: 0.62}}
	if got := svc.evaluate(c); got != stateDone {
		t.Errorf("support equal to threshold must be sufficient, got state %d", got)
	}

	c = &cycle{result: &answer.Result{Support: 0.6199}}
	if got := svc.evaluate(c); got != stateHydeRewrite {
		t.Errorf("support below threshold must try rewrite, got state %d", got)
	}

	c = &cycle{result: &answer.Result{Support: 0.6199}, hydeAttempted: true}
	if got := svc.evaluate(c); got != stateNoAnswer {
		t.Errorf("second insufficient round must give up, got state %d", got)
	}
}

func TestAnswer_HydeRecovers(t *testing.T) {
	question := "vague question"
	fe := &fakeEmbedder{vectors: map[string][]float32{
		question:           queryWeak,
		"hypothetical doc": queryMedium,
	}}
	gen := &fakeGenerator{texts: []string{"weak answer", "strong answer"}}
	rw := &fakeRewriter{query: "hypothetical doc"}
	svc := newTestService(t, twoDocs(), fe, gen, rw, Config{SupportThreshold: 0.62, TopK: 2})

	res, err := svc.Answer(context.Background(), question)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Text != "strong answer" {
		t.Errorf("expected enhanced answer text, got %q", res.Text)
	}
	if math.Abs(res.Support-0.7) > supportTolerance {
		t.Errorf("expected support ~0.7, got %f", res.Support)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(res.Attempts))
	}
	if res.Attempts[0].Kind != answer.KindBaseline || res.Attempts[1].Kind != answer.KindHyde {
		t.Errorf("unexpected attempt kinds: %s, %s", res.Attempts[0].Kind, res.Attempts[1].Kind)
	}
	if res.Attempts[1].Query != "hypothetical doc" {
		t.Errorf("hyde attempt must record the rewritten query, got %q", res.Attempts[1].Query)
	}

	// The second prompt answers the original question even though
	// retrieval ran on the rewritten query.
	if len(gen.prompts) != 2 || !strings.Contains(gen.prompts[1], question) {
		t.Errorf("enhanced prompt must reference the original question")
	}
}

func TestAnswer_BothInsufficient_NoAnswer(t *testing.T) {
	question := "unanswerable question"
	fe := &fakeEmbedder{vectors: map[string][]float32{
		question:           queryWeak,
		"hypothetical doc": queryLow,
	}}
	gen := &fakeGenerator{texts: []string{"weak answer", "still weak"}}
	rw := &fakeRewriter{query: "hypothetical doc"}
	svc := newTestService(t, twoDocs(), fe, gen, rw, Config{SupportThreshold: 0.62, TopK: 2})

	res, err := svc.Answer(context.Background(), question)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(res.Text, "could not be answered") {
		t.Errorf("expected no-answer template, got %q", res.Text)
	}
	if res.Support != 0.0 {
		t.Errorf("no-answer support must be 0.0, got %f", res.Support)
	}
	if len(res.Citations) != 0 {
		t.Errorf("no-answer citations must be empty, got %d", len(res.Citations))
	}

	// The retry cap: exactly one baseline and one hyde attempt.
	if len(res.Attempts) != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", len(res.Attempts))
	}
	var baselines, hydes int
	for _, a := range res.Attempts {
		switch a.Kind {
		case answer.KindBaseline:
			baselines++
		case answer.KindHyde:
			hydes++
		}
	}
	if baselines != 1 || hydes != 1 {
		t.Errorf("expected 1 baseline + 1 hyde attempt, got %d + %d", baselines, hydes)
	}
	if rw.calls != 1 {
		t.Errorf("rewriter must run exactly once, ran %d times", rw.calls)
	}
}

func TestAnswer_RewriteFailure(t *testing.T) {
	question := "vague question"
	fe := &fakeEmbedder{vectors: map[string][]float32{question: queryWeak}}
	gen := &fakeGenerator{texts: []string{"weak answer"}}
	rw := &fakeRewriter{err: domain.ErrRewriteFailed}
	svc := newTestService(t, twoDocs(), fe, gen, rw, Config{SupportThreshold: 0.62, TopK: 2})

	res, err := svc.Answer(context.Background(), question)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(res.Text, "could not be answered") {
		t.Errorf("expected no-answer template after rewrite failure, got %q", res.Text)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(res.Attempts))
	}
	last := res.Attempts[1]
	if last.Kind != answer.KindHyde || !last.Failed() {
		t.Errorf("expected failed hyde attempt, got %+v", last)
	}
}

func TestAnswer_GenerationFailureRecovered(t *testing.T) {
	question := "flaky question"
	fe := &fakeEmbedder{vectors: map[string][]float32{
		question:           queryWeak,
		"hypothetical doc": queryMedium,
	}}
	gen := &fakeGenerator{
		texts: []string{"", "recovered answer"},
		errs:  []error{domain.ErrGenerationFailed, nil},
	}
	rw := &fakeRewriter{query: "hypothetical doc"}
	svc := newTestService(t, twoDocs(), fe, gen, rw, Config{SupportThreshold: 0.62, TopK: 2})

	res, err := svc.Answer(context.Background(), question)
	if err != nil {
		t.Fatalf("generation failure must not escape: %v", err)
	}

	if res.Text != "recovered answer" {
		t.Errorf("expected hyde round to recover, got %q", res.Text)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(res.Attempts))
	}
	if !res.Attempts[0].Failed() || res.Attempts[0].Support != 0.0 {
		t.Errorf("baseline attempt must record the error with support 0.0, got %+v", res.Attempts[0])
	}
	if res.Attempts[1].Failed() {
		t.Errorf("hyde attempt must be clean, got %+v", res.Attempts[1])
	}
}

func TestAnswer_QueryEmbeddingFailureShortCircuits(t *testing.T) {
	question := "broken question"
	fe := &fakeEmbedder{failOn: map[string]bool{question: true}}
	gen := &fakeGenerator{}
	rw := &fakeRewriter{query: "unused"}
	svc := newTestService(t, twoDocs(), fe, gen, rw, Config{SupportThreshold: 0.62, TopK: 2})

	res, err := svc.Answer(context.Background(), question)
	if err != nil {
		t.Fatalf("embedding failure must not escape: %v", err)
	}

	if !strings.Contains(res.Text, "No relevant papers") {
		t.Errorf("expected no-relevant-documents text, got %q", res.Text)
	}
	if res.Support != 0.0 {
		t.Errorf("expected support 0.0, got %f", res.Support)
	}
	if len(res.Attempts) != 1 {
		t.Fatalf("zero-context baseline must short-circuit, got %d attempts", len(res.Attempts))
	}
	if rw.calls != 0 {
		t.Errorf("rewriter must not run on the short-circuit path, ran %d times", rw.calls)
	}
	if len(gen.prompts) != 0 {
		t.Errorf("generator must not run without contexts, ran %d times", len(gen.prompts))
	}
}

func TestAnswer_DuplicateTitlesDeduped(t *testing.T) {
	docs := []testDoc{
		{id: "1706.03762", title: "Attention Is All You Need", embedding: docA},
		{id: "1706.03762v2", title: "Attention Is All You Need", embedding: docB},
	}
	fe := &fakeEmbedder{vectors: map[string][]float32{"q": queryStrong}}
	gen := &fakeGenerator{texts: []string{"answer"}}
	svc := newTestService(t, docs, fe, gen, &fakeRewriter{}, Config{SupportThreshold: 0.62, TopK: 2})

	res, err := svc.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Citations) != 1 {
		t.Errorf("expected deduplicated citations, got %d", len(res.Citations))
	}
}

func TestSupportScore_EmbeddingFailureReturnsZero(t *testing.T) {
	fe := &fakeEmbedder{failOn: map[string]bool{"q": true}}
	svc := NewService(index.NewHolder(), fe, &fakeGenerator{}, &fakeRewriter{}, Config{}, zap.NewNop())

	contexts := []index.RetrievedContext{{PaperID: "x", Embedding: docA}}
	if got := svc.supportScore(context.Background(), "q", contexts); got != 0.0 {
		t.Errorf("expected 0.0 on embedding failure, got %f", got)
	}
	if got := svc.supportScore(context.Background(), "q", nil); got != 0.0 {
		t.Errorf("expected 0.0 on empty contexts, got %f", got)
	}
}

func TestAnalyzeMissingElements(t *testing.T) {
	tests := []struct {
		name     string
		question string
		wantLen  int
		excluded string
	}{
		{
			name:     "nothing specified caps at three",
			question: "tell me about papers",
			wantLen:  3,
		},
		{
			name:     "method mentioned drops method suggestion",
			question: "how does the transformer work",
			wantLen:  3,
			excluded: "method or algorithm",
		},
		{
			name:     "everything mentioned falls back to generic",
			question: "recent transformer results on the GLUE benchmark in natural language processing",
			wantLen:  3,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := analyzeMissingElements(tc.question)
			if len(got) != tc.wantLen {
				t.Fatalf("expected %d suggestions, got %d: %v", tc.wantLen, len(got), got)
			}
			if tc.excluded != "" {
				for _, s := range got {
					if strings.Contains(s, tc.excluded) {
						t.Errorf("suggestion %q must not appear", s)
					}
				}
			}
		})
	}
}

func TestBuildAnswerPrompt(t *testing.T) {
	contexts := []index.RetrievedContext{
		{Title: "Paper One", Summary: "First summary."},
		{Title: "Paper Two", Summary: "Second summary."},
	}
	prompt := buildAnswerPrompt("what is X?", contexts)

	if !strings.Contains(prompt, "what is X?") {
		t.Error("prompt must contain the question")
	}
	if !strings.Contains(prompt, "1) Paper One\nFirst summary.") {
		t.Error("prompt must number contexts in retrieval order")
	}
	if !strings.Contains(prompt, "2) Paper Two") {
		t.Error("prompt must include the second context")
	}
	if !strings.Contains(prompt, "ONLY the provided contexts") {
		t.Error("prompt must constrain generation to the contexts")
	}
}
