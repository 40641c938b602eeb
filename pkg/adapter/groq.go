package adapter

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const groqBaseURL = "https://api.groq.com/openai/v1/"

// GroqAdapter implements the Adapter interface for models hosted on Groq,
// which serves an OpenAI-compatible chat API.
type GroqAdapter struct {
	client openai.Client
}

// NewGroqAdapter creates a new Groq adapter.
func NewGroqAdapter(apiKey string) (*GroqAdapter, error) {
	return newGroqAdapter(apiKey)
}

func newGroqAdapter(apiKey string, opts ...option.RequestOption) (*GroqAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}

	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(groqBaseURL),
		option.WithMaxRetries(0),
	}
	client := openai.NewClient(append(base, opts...)...)
	return &GroqAdapter{client: client}, nil
}

// Name returns the adapter identifier.
func (a *GroqAdapter) Name() string {
	return "groq"
}

// Models returns the list of supported Groq models.
func (a *GroqAdapter) Models() []string {
	return []string{
		"llama-3.3-70b-versatile",
		"llama-3.1-8b-instant",
		"mixtral-8x7b-32768",
	}
}

// Generate sends a prompt to Groq.
func (a *GroqAdapter) Generate(ctx context.Context, model string, prompt string) (*Response, error) {
	return chatCompletion(ctx, a.client, a.Name(), model, prompt)
}
