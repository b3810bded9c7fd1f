package llm

import (
	"context"
)

// MockClient is a configurable Client for tests. Set CompleteFunc to
// control behavior; the zero value returns empty completions.
type MockClient struct {
	// CompleteFunc is called when Complete is invoked. If nil,
	// Complete returns "" with zero usage.
	CompleteFunc func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, Usage, error)

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// CompleteCalls counts Complete invocations.
	CompleteCalls int

	// Prompts records every prompt passed to Complete, for assertions.
	Prompts []string
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock with defaults.
func NewMockClient() *MockClient {
	return &MockClient{ModelName: "mock-model"}
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, prompt, systemMessage string, temperature float64) (string, Usage, error) {
	m.CompleteCalls++
	m.Prompts = append(m.Prompts, prompt)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, systemMessage, temperature)
	}
	return "", Usage{}, nil
}

// Model implements Client.
func (m *MockClient) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}
