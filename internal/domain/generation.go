package domain

import "context"

// Generator is the text generation contract (an LLM chat call behind the scenes).
// Given prompt text it returns generated text, or an error wrapping ErrGenerationFailed.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
