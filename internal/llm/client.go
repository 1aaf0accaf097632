// Package llm provides a uniform "generate structured output from a
// prompt" capability over interchangeable hosted model providers.
package llm

import (
	"context"
	"fmt"
)

// Response carries the raw model output and the provider-reported token
// usage for one generation.
type Response struct {
	RawText      string
	InputTokens  int
	OutputTokens int
}

// TotalTokens is the combined input and output usage.
func (r *Response) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Client generates a structured value from a prompt. Implementations must
// decode the model output into out (a pointer to a JSON-taggable struct)
// or return an error classifiable by IsRetryable.
type Client interface {
	Generate(ctx context.Context, prompt, system string, out any) (*Response, error)
	ModelName() string
}

// Provider defaults, used when no model is configured explicitly.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

var providerDefaults = map[string]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-sonnet-4-20250514",
	ProviderGemini:    "gemini-3-flash-preview",
}

// DefaultModel returns the default model identifier for a provider.
func DefaultModel(provider string) string {
	return providerDefaults[provider]
}

// New builds a concrete client for the given provider. An empty model
// selects the provider default.
func New(provider, apiKey, model string) (Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: API key is required for provider %q", provider)
	}
	if model == "" {
		model = DefaultModel(provider)
	}

	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, model), nil
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, model), nil
	case ProviderGemini:
		return NewGeminiClient(apiKey, model), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", provider)
	}
}
