package llm

import (
	"context"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/slidewise/deckd/internal/core"
)

func TestNewGenAIRunnerRequiresAPIKey(t *testing.T) {
	_, err := NewGenAIRunner(context.Background(), GenAIConfig{})
	if !core.IsCategory(err, core.ErrCatValidation) {
		t.Errorf("error category = %v, want validation", core.GetCategory(err))
	}
}

func TestNewGenAIRunnerDefaults(t *testing.T) {
	r, err := NewGenAIRunner(context.Background(), GenAIConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewGenAIRunner() error = %v", err)
	}
	if r.Name() != "genai" {
		t.Errorf("Name() = %q, want genai", r.Name())
	}
	if r.model != "gemini-2.5-flash" {
		t.Errorf("model = %q, want gemini-2.5-flash", r.model)
	}
	if r.timeout != 60*time.Second {
		t.Errorf("timeout = %s, want 60s", r.timeout)
	}
}

func TestNewGenAIEmbedderRequiresAPIKey(t *testing.T) {
	_, err := NewGenAIEmbedder(context.Background(), "", "")
	if !core.IsCategory(err, core.ErrCatValidation) {
		t.Errorf("error category = %v, want validation", core.GetCategory(err))
	}
}

func TestNewGenAIEmbedderDefaultModel(t *testing.T) {
	e, err := NewGenAIEmbedder(context.Background(), "test-key", "")
	if err != nil {
		t.Fatalf("NewGenAIEmbedder() error = %v", err)
	}
	if e.model != "gemini-embedding-001" {
		t.Errorf("model = %q, want gemini-embedding-001", e.model)
	}
}

func TestClassifyGenAIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want core.ErrorCategory
	}{
		{"deadline", context.DeadlineExceeded, core.ErrCatTimeout},
		{"canceled", context.Canceled, core.ErrCatTimeout},
		{"rate limited", genai.APIError{Code: 429}, core.ErrCatRateLimit},
		{"unauthorized", genai.APIError{Code: 401}, core.ErrCatAuth},
		{"forbidden", genai.APIError{Code: 403}, core.ErrCatAuth},
		{"backend down", genai.APIError{Code: 503}, core.ErrCatNetwork},
		{"bad request", genai.APIError{Code: 400}, core.ErrCatCapability},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyGenAIError(tt.err)
			if !core.IsCategory(got, tt.want) {
				t.Errorf("category = %v, want %v", core.GetCategory(got), tt.want)
			}
		})
	}
}
