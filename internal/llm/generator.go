package llm

import "context"

// Generator produces a natural-language completion for an assembled prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}
