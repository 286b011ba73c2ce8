package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/slidewise/deckd/internal/core"
)

// GenAIRunner calls Gemini through the google.golang.org/genai SDK.
type GenAIRunner struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// GenAIConfig configures the Gemini adapter.
type GenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewGenAIRunner creates a Gemini-backed runner.
func NewGenAIRunner(ctx context.Context, cfg GenAIConfig) (*GenAIRunner, error) {
	if cfg.APIKey == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "genai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, core.ErrCapability(core.CodeLLMUnavailable, "creating genai client").WithCause(err)
	}
	return &GenAIRunner{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}, nil
}

// Name implements core.LLMRunner.
func (r *GenAIRunner) Name() string { return "genai" }

// Run implements core.LLMRunner. Provider failures are mapped to domain
// error categories so callers never branch on SDK error types.
func (r *GenAIRunner) Run(ctx context.Context, req core.LLMRequest) (*core.LLMResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = r.temperature
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if r.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(r.maxTokens)
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	start := time.Now()
	resp, err := r.client.Models.GenerateContent(ctx, r.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, classifyGenAIError(err)
	}

	output := resp.Text()
	result := &core.LLMResult{
		Output:   output,
		Model:    r.model,
		Duration: time.Since(start),
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(extractJSON(output)), &parsed); err == nil {
		result.Parsed = parsed
	}
	return result, nil
}

// classifyGenAIError maps SDK failures onto domain categories.
func classifyGenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrTimeout("model call timed out").WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return core.ErrTimeout("model call canceled").WithCause(err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return core.ErrRateLimit("model rate limited").WithCause(err)
		case apiErr.Code == 401 || apiErr.Code == 403:
			return core.ErrAuth("model rejected credentials").WithCause(err)
		case apiErr.Code >= 500:
			return core.ErrNetwork("model backend unavailable").WithCause(err)
		case apiErr.Code >= 400:
			return core.ErrCapability(core.CodeLLMUnavailable, "model rejected request").WithCause(err)
		}
	}
	return core.ErrNetwork("model call failed").WithCause(err)
}

// extractJSON strips markdown fences models often wrap JSON in.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// GenAIEmbedder produces embeddings with Gemini.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

// NewGenAIEmbedder creates a Gemini-backed embedder.
func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "genai api key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, core.ErrCapability(core.CodeLLMUnavailable, "creating genai client").WithCause(err)
	}
	return &GenAIEmbedder{client: client, model: model}, nil
}

// Embed implements core.Embedder.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, classifyGenAIError(err)
	}
	if len(result.Embeddings) == 0 {
		return nil, core.ErrCapability(core.CodeLLMUnavailable, "no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}
