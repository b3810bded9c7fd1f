package llm

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/munuiq/insights-engine/pkg/apperrors"
	"github.com/munuiq/insights-engine/pkg/config"
)

// Prefixes routing a model name to the OpenAI-compatible endpoint
// instead of Anthropic.
var openaiPrefixes = []string{"openai:", "local:"}

// Factory creates completion clients per model name. Clients are
// cached; creating one is cheap but holds an HTTP client.
type Factory struct {
	cfg    config.LLMConfig
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]Client
}

// NewFactory creates a client factory from the LLM configuration.
func NewFactory(cfg config.LLMConfig, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]Client),
	}
}

// ClientFor returns a client bound to model. A model name carrying an
// "openai:" or "local:" prefix routes to the OpenAI-compatible
// endpoint with the prefix stripped; anything else is an Anthropic
// model name.
func (f *Factory) ClientFor(model string) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if model == "" {
		return nil, apperrors.ErrInvalidModel
	}
	if c, ok := f.clients[model]; ok {
		return c, nil
	}

	var (
		c   Client
		err error
	)
	if stripped, ok := stripOpenAIPrefix(model); ok {
		c, err = NewOpenAIClient(f.cfg.OpenAIBaseURL, f.cfg.OpenAIAPIKey, stripped, f.logger)
	} else {
		c, err = NewAnthropicClient(f.cfg.AnthropicAPIKey, model, f.logger)
	}
	if err != nil {
		return nil, err
	}
	f.clients[model] = c
	return c, nil
}

func stripOpenAIPrefix(model string) (string, bool) {
	for _, p := range openaiPrefixes {
		if strings.HasPrefix(model, p) {
			return strings.TrimPrefix(model, p), true
		}
	}
	return model, false
}
