package adapter

import (
	"context"
	"fmt"
)

// Adapter is a reasoning service the stages send prompts to.
type Adapter interface {
	// Generate sends a prompt to the model and returns its reply.
	Generate(ctx context.Context, model string, prompt string) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// New creates the named adapter. The mock adapter needs no key.
func New(name, apiKey string) (Adapter, error) {
	switch name {
	case "anthropic":
		return NewAnthropicAdapter(apiKey)
	case "openai":
		return NewOpenAIAdapter(apiKey)
	case "google":
		return NewGoogleAdapter(apiKey)
	case "groq":
		return NewGroqAdapter(apiKey)
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown adapter %q", name)
	}
}
