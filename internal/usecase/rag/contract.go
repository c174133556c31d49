package rag

import "context"

// Rewriter produces an alternate retrieval query for a question.
type Rewriter interface {
	Rewrite(ctx context.Context, question string) (string, error)
}
