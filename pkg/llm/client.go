// Package llm provides the text-completion capability behind SQL
// generation, SQL repair, and insight narration. Model output is
// treated as unreliable; every consumer goes through the extraction
// helpers rather than trusting raw completions.
package llm

import (
	"context"
)

// Usage is the token accounting for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates usage across pipeline steps.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Client is the minimal completion interface. Use it for dependency
// injection so tests can substitute MockClient.
type Client interface {
	// Complete generates a completion for prompt under systemMessage.
	Complete(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, Usage, error)

	// Model returns the model name the client is bound to.
	Model() string
}
