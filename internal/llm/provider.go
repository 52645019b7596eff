// Package llm provides the provider-agnostic completion interface behind
// segment summarization. The pipeline depends only on Provider; concrete
// implementations cover the OpenAI platform and OpenRouter.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Provider is the capability interface for text completions.
type Provider interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns a human-readable provider name (e.g. "openai/gpt-4o-mini").
	Name() string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int     // max tokens to generate (0 = provider default)
	Temperature float64 // 0.0-2.0
	System      string  // system prompt (optional)
}

// Config holds provider configuration.
type Config struct {
	Provider string // "openai", "openrouter"
	Model    string
	APIKey   string // empty = read from env
	BaseURL  string // optional URL override (openrouter only)
}

// HTTPError is an HTTP-level provider failure. RetryAfter carries the
// server's Retry-After hint when present; callers use it to pace retries on
// rate limits.
type HTTPError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NewProvider creates an LLM provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY env var")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return newOpenAIProvider(key, model), nil

	case "openrouter":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("OPENROUTER_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("openrouter provider requires OPENROUTER_API_KEY env var")
		}
		model := cfg.Model
		if model == "" {
			model = "openai/gpt-4o-mini"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://openrouter.ai/api/v1"
		}
		return &openrouterProvider{apiKey: key, model: model, baseURL: baseURL}, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: openai, openrouter)", cfg.Provider)
	}
}

// ParseFlag parses a --llm flag value into a Config.
// Format: "provider/model", e.g. "openai/gpt-4o-mini",
// "openrouter/anthropic/claude-3.5-haiku".
func ParseFlag(flag string) (Config, error) {
	if flag == "" {
		return Config{Provider: "openai", Model: "gpt-4o-mini"}, nil
	}

	parts := strings.SplitN(flag, "/", 2)
	if len(parts) < 2 {
		return Config{}, fmt.Errorf("invalid --llm format %q: expected provider/model", flag)
	}

	provider := strings.ToLower(parts[0])
	switch provider {
	case "openai", "openrouter":
		return Config{Provider: provider, Model: parts[1]}, nil
	default:
		return Config{}, fmt.Errorf("unknown provider %q in --llm flag (supported: openai, openrouter)", provider)
	}
}
