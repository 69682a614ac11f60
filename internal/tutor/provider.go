// Package tutor streams AI tutor answers from the user's configured
// provider. Provider selection happens in exactly one place, NewClient.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider names an AI backend.
type Provider string

const (
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
	Ollama    Provider = "ollama"
)

var (
	// ErrUnsupportedProvider is returned for provider names outside the
	// known set.
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrUpstream marks failures reported by the provider itself.
	ErrUpstream = errors.New("provider request failed")
)

// Providers lists the known providers in display order.
func Providers() []Provider {
	return []Provider{OpenAI, Anthropic, Ollama}
}

// ParseProvider maps a provider name to a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
}

// RequiresKey reports whether the provider needs an API key. Ollama runs
// locally without one.
func (p Provider) RequiresKey() bool {
	return p != Ollama
}

// Message is one conversation turn. Role is "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a streaming chat request.
type Request struct {
	Model    string
	System   string
	Messages []Message
}

// Client streams a completion, calling onDelta with each text fragment in
// order. Returning an error from onDelta aborts the stream.
type Client interface {
	Stream(ctx context.Context, req Request, onDelta func(string) error) error
}

// Config carries the per-user credentials and endpoint overrides.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// ProviderError is a non-success answer from a provider.
type ProviderError struct {
	Provider   Provider
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap lets callers match any provider failure with ErrUpstream.
func (e *ProviderError) Unwrap() error { return ErrUpstream }

const defaultTimeout = 5 * time.Minute

// NewClient builds the streaming client for p.
func NewClient(p Provider, cfg Config) (Client, error) {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}

	switch p {
	case OpenAI:
		return &openAIClient{http: hc, apiKey: cfg.APIKey, baseURL: baseURLOr(cfg.BaseURL, defaultOpenAIURL)}, nil
	case Anthropic:
		return &anthropicClient{http: hc, apiKey: cfg.APIKey, baseURL: baseURLOr(cfg.BaseURL, defaultAnthropicURL)}, nil
	case Ollama:
		return &ollamaClient{http: hc, baseURL: baseURLOr(cfg.BaseURL, defaultOllamaURL)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, string(p))
	}
}

func baseURLOr(v, def string) string {
	if v == "" {
		return def
	}
	return strings.TrimRight(v, "/")
}
