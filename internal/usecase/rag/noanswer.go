package rag

import (
	"fmt"
	"strings"

	"github.com/spin-glass/papers-rag-agent/internal/domain/answer"
)

const maxMissingSuggestions = 3

// missingCategory is one class of information a question can lack.
type missingCategory struct {
	keywords   []string
	suggestion string
}

// Four categories checked against the lowercased question. A question that
// mentions none of a category's keywords gets that category suggested back.
var missingCategories = []missingCategory{
	{
		keywords: []string{
			"year", "years", "recent", "latest", "since", "before", "after",
			"2023", "2024", "2025", "2026",
		},
		suggestion: "a specific time period (for example: since 2023, recent work)",
	},
	{
		keywords: []string{
			"algorithm", "method", "model", "approach", "technique",
			"framework", "architecture", "transformer", "bert", "gpt",
			"neural", "deep learning", "machine learning",
		},
		suggestion: "a specific method or algorithm name (for example: Transformer, BERT, CNN)",
	},
	{
		keywords: []string{
			"dataset", "data", "benchmark", "corpus", "imagenet", "coco",
			"glue", "squad", "evaluation",
		},
		suggestion: "a target dataset or benchmark (for example: ImageNet, GLUE, SQuAD)",
	},
	{
		keywords: []string{
			"computer vision", "nlp", "natural language", "vision", "speech",
			"robotics", "medical", "audio",
		},
		suggestion: "the research area (for example: computer vision, natural language processing, speech recognition)",
	},
}

// Suggested when the question already names all four categories but still
// could not be answered.
var fallbackSuggestions = []string{
	"a more specific research field or application area",
	"concrete technical requirements or constraints",
	"existing methods to compare against",
}

// analyzeMissingElements suggests what information the question lacks,
// capped at three suggestions.
func analyzeMissingElements(question string) []string {
	lower := strings.ToLower(question)

	var missing []string
	for _, cat := range missingCategories {
		found := false
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, cat.suggestion)
		}
	}

	if len(missing) == 0 {
		missing = fallbackSuggestions
	}
	if len(missing) > maxMissingSuggestions {
		missing = missing[:maxMissingSuggestions]
	}
	return missing
}

// noAnswer builds the terminal cannot-answer result. Support is always 0.0
// and citations are always empty; the full attempt history is carried
// forward for observability.
func noAnswer(question string, attempts []answer.Attempt) *answer.Result {
	var b strings.Builder
	b.WriteString("This question could not be answered from the indexed papers. The following information may be missing:\n\n")
	for i, element := range analyzeMissingElements(question) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, element)
	}
	b.WriteString("\nPlease retry with a more specific time period, method name, or dataset.")

	return &answer.Result{
		Text:      b.String(),
		Citations: []answer.Citation{},
		Support:   0.0,
		Attempts:  attempts,
	}
}
