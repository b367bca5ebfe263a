// Package llm talks to the hosted models and picks which model and key
// a generation attempt uses.
package llm

import (
	"context"
	"errors"
	"strings"
)

// Providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var (
	ErrNoAPIKey      = errors.New("no API key configured for model provider")
	ErrUnknownModel  = errors.New("unknown model provider")
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// Request is one model call.
type Request struct {
	Model           string
	System          string
	Prompt          string
	Temperature     float32
	MaxOutputTokens int
	JSON            bool
	APIKey          string
}

// Client performs a single, non-streaming model call.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ProviderFor maps a model name to its provider.
func ProviderFor(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "gemini"):
		return ProviderGemini
	case strings.HasPrefix(m, "gpt-"), strings.HasPrefix(m, "chatgpt-"):
		return ProviderOpenAI
	case len(m) > 1 && m[0] == 'o' && m[1] >= '0' && m[1] <= '9':
		return ProviderOpenAI
	default:
		return ""
	}
}
