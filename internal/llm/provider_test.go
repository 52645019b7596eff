package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseFlag(t *testing.T) {
	cases := []struct {
		in       string
		provider string
		model    string
		wantErr  bool
	}{
		{"", "openai", "gpt-4o-mini", false},
		{"openai/gpt-4o", "openai", "gpt-4o", false},
		{"openrouter/anthropic/claude-3.5-haiku", "openrouter", "anthropic/claude-3.5-haiku", false},
		{"OpenAI/gpt-4o", "openai", "gpt-4o", false},
		{"openai", "", "", true},
		{"mystery/model", "", "", true},
	}
	for _, tc := range cases {
		cfg, err := ParseFlag(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseFlag(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFlag(%q): %v", tc.in, err)
			continue
		}
		if cfg.Provider != tc.provider || cfg.Model != tc.model {
			t.Errorf("ParseFlag(%q) = %+v", tc.in, cfg)
		}
	}
}

func TestNewProviderRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	if _, err := NewProvider(Config{Provider: "openai"}); err == nil {
		t.Error("openai without key: expected error")
	}
	if _, err := NewProvider(Config{Provider: "openrouter"}); err == nil {
		t.Error("openrouter without key: expected error")
	}
	if _, err := NewProvider(Config{Provider: "acme"}); err == nil {
		t.Error("unknown provider: expected error")
	}
}

func TestNewProviderNames(t *testing.T) {
	p, err := NewProvider(Config{Provider: "openai", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.Name() != "openai/gpt-4o-mini" {
		t.Errorf("Name = %q", p.Name())
	}

	p, err = NewProvider(Config{Provider: "openrouter", APIKey: "sk-test", Model: "qwen/qwen-2.5-72b-instruct"})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.Name() != "openrouter/qwen/qwen-2.5-72b-instruct" {
		t.Errorf("Name = %q", p.Name())
	}
}

func TestOpenrouterComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth = %q", got)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"a summary"}}]}`))
	}))
	defer srv.Close()

	p := &openrouterProvider{apiKey: "sk-test", model: "test-model", baseURL: srv.URL}
	text, err := p.Complete(context.Background(), "prompt", CompletionOpts{System: "sys", MaxTokens: 100})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "a summary" {
		t.Errorf("text = %q", text)
	}
}

func TestOpenrouterRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	p := &openrouterProvider{apiKey: "sk-test", model: "test-model", baseURL: srv.URL}
	_, err := p.Complete(context.Background(), "prompt", CompletionOpts{})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d", httpErr.StatusCode)
	}
	if httpErr.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", httpErr.RetryAfter)
	}
}

func TestOpenrouterNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := &openrouterProvider{apiKey: "sk-test", model: "test-model", baseURL: srv.URL}
	if _, err := p.Complete(context.Background(), "prompt", CompletionOpts{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
