package rag

import (
	"fmt"
	"strings"

	"github.com/spin-glass/papers-rag-agent/internal/index"
)

const answerPromptTemplate = `You are a careful scientific assistant. Use ONLY the provided contexts.
If the contexts are insufficient, say you cannot answer and list what is missing.

Question:
%s

Contexts:
%s

Requirements:
- Bullet the key points clearly.
- Cite at least 2 sources from the contexts as titles with their arXiv abstract URLs.
- Do not invent facts not supported by the contexts.

Citations:
`

// buildAnswerPrompt assembles the grounded generation prompt. Contexts are
// numbered in retrieval order so citations can reference them.
func buildAnswerPrompt(question string, contexts []index.RetrievedContext) string {
	var b strings.Builder
	for i, ctx := range contexts {
		fmt.Fprintf(&b, "%d) %s\n%s\n\n", i+1, ctx.Title, ctx.Summary)
	}
	return fmt.Sprintf(answerPromptTemplate, question, strings.TrimSpace(b.String()))
}
