package hyde

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spin-glass/papers-rag-agent/internal/domain"
)

type fakeGenerator struct {
	text   string
	err    error
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.text, f.err
}

func TestRewrite(t *testing.T) {
	gen := &fakeGenerator{text: "  A hypothetical summary about transformers.  "}
	svc := NewService(gen, zap.NewNop())

	got, err := svc.Rewrite(context.Background(), "what is attention?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "A hypothetical summary about transformers." {
		t.Errorf("expected trimmed rewrite, got %q", got)
	}
	if !strings.Contains(gen.prompt, `"what is attention?"`) {
		t.Errorf("prompt must quote the question, got %q", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "150-250 words") {
		t.Error("prompt must constrain the summary length")
	}
}

func TestRewrite_GeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	svc := NewService(gen, zap.NewNop())

	_, err := svc.Rewrite(context.Background(), "q")
	if !errors.Is(err, domain.ErrRewriteFailed) {
		t.Fatalf("expected ErrRewriteFailed, got %v", err)
	}
}

func TestRewrite_EmptyOutput(t *testing.T) {
	gen := &fakeGenerator{text: "   "}
	svc := NewService(gen, zap.NewNop())

	_, err := svc.Rewrite(context.Background(), "q")
	if !errors.Is(err, domain.ErrRewriteFailed) {
		t.Fatalf("expected ErrRewriteFailed on empty rewrite, got %v", err)
	}
}
