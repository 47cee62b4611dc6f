// Package llm is the boundary to the opaque text-generation backend.
package llm

import (
	"context"
)

// Generator completes a prompt. Implementations may fail or time out; callers
// substitute canned content and carry on.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
