// Package llm is the text-generation seam of the minutes pipeline. The
// summarizer speaks to every provider through Client; provider SDKs and their
// request shapes stay behind this package.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Generation posture shared by all providers. Minutes generation wants long,
// reproducible output: the transcript is the source of truth and the model
// should restate it, not embellish it.
const (
	maxOutputTokens       = 8192
	generationTemperature = 0.3
)

// ErrInvalidRequest marks provider failures that no retry can fix: a rejected
// API key, an unknown model, a prompt the provider refuses to process. The
// summarizer's retry loop exits early on it.
var ErrInvalidRequest = errors.New("invalid completion request")

// Message is one turn of a completion prompt. Role is "system", "user" or
// "assistant".
type Message struct {
	Role    string
	Content string
}

// Client completes a prompt into generated text.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
}

// WithBaseURL points the provider client at a non-default host. Used to run
// against proxies and test servers.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// ParseModel splits a configured "provider/model" string.
func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

// NewClient builds the provider client for minutes generation.
func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "anthropic":
		return newAnthropicClient(apiKey, model, o)
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}

// statusPermanent reports whether a provider HTTP status condemns the request
// itself rather than the backend. 408 and 429 stay retryable.
func statusPermanent(status int) bool {
	return status >= 400 && status < 500 && status != 408 && status != 429
}
