// Package llm provides language-model adapters behind the core.LLMRunner
// port. The mock adapter is fully deterministic and drives tests and
// offline deployments; the genai adapter calls Gemini.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/slidewise/deckd/internal/core"
)

// MockRunner is a deterministic LLMRunner. Responses are derived from the
// prompt alone, so identical inputs always produce identical outputs.
type MockRunner struct {
	// Delay simulates model latency. Zero means respond immediately.
	Delay time.Duration
	// Fail, when set, makes every call return this error. Used to
	// exercise failure paths.
	Fail error
}

// NewMockRunner creates a mock with no latency.
func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// Name implements core.LLMRunner.
func (m *MockRunner) Name() string { return "mock" }

// Run implements core.LLMRunner. It recognizes the analysis and
// structure prompts by marker and returns well-formed JSON for them;
// anything else gets a generic echo completion.
func (m *MockRunner) Run(ctx context.Context, req core.LLMRequest) (*core.LLMResult, error) {
	if m.Fail != nil {
		return nil, m.Fail
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, core.ErrTimeout("mock model call canceled").WithCause(ctx.Err())
		}
	}

	start := time.Now()
	output := m.respond(req)

	result := &core.LLMResult{
		Output:   output,
		Model:    "mock",
		Duration: time.Since(start),
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(output), &parsed); err == nil {
		result.Parsed = parsed
	}
	return result, nil
}

func (m *MockRunner) respond(req core.LLMRequest) string {
	prompt := strings.ToLower(req.Prompt)
	switch {
	case strings.Contains(prompt, "analyze the following"):
		return m.analysisJSON(req.Prompt)
	case strings.Contains(prompt, "presentation structure"):
		return m.structureJSON(req.Prompt)
	default:
		return fmt.Sprintf("mock completion for: %s", firstLine(req.Prompt))
	}
}

// analysisJSON fabricates a plausible requirement analysis. Scores are
// keyed off the request text so short vague requests rank incomplete.
func (m *MockRunner) analysisJSON(prompt string) string {
	score := 0.5
	if len(userInput(prompt)) > 120 {
		score = 0.85
	}
	intent := "presentation"
	lower := strings.ToLower(prompt)
	if strings.Contains(lower, "hello") || strings.Contains(lower, "hi there") {
		intent = "greeting"
	}
	out := map[string]interface{}{
		"completeness_score":  score,
		"missing_information": []string{"audience", "duration"},
		"detected_intent":     intent,
		"presentation_type":   "business",
		"estimated_slides":    8,
		"complexity_level":    "moderate",
		"key_topics":          []string{"overview"},
		"suggested_flow":      []string{"intro", "body", "close"},
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func (m *MockRunner) structureJSON(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	slides := 5 + int(sum[0])%4
	outlines := make([]map[string]interface{}, 0, slides)
	for i := 1; i <= slides; i++ {
		layout := "content"
		switch i {
		case 1:
			layout = "hero"
		case slides:
			layout = "closing"
		}
		outlines = append(outlines, map[string]interface{}{
			"slide_number": i,
			"title":        fmt.Sprintf("Slide %d", i),
			"layout_type":  layout,
		})
	}
	out := map[string]interface{}{
		"title":          "Generated Presentation",
		"subtitle":       "",
		"slide_outlines": outlines,
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// userInput extracts the request text embedded in the analysis prompt.
// Falls back to the full prompt when the marker is absent.
func userInput(prompt string) string {
	const marker = "User Input: "
	i := strings.Index(prompt, marker)
	if i < 0 {
		return prompt
	}
	rest := prompt[i+len(marker):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}

// MockEmbedder hashes text into a fixed-dimension vector. Identical text
// embeds identically; similarity over these vectors is stable across
// runs.
type MockEmbedder struct {
	// Dim is the vector dimension. Zero means 32.
	Dim int
}

// Embed implements core.Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := m.Dim
	if dim <= 0 {
		dim = 32
	}
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	vec := make([]float32, dim)
	for i := 0; i < dim; i++ {
		vec[i] = float32(sum[i%len(sum)]) / 255.0
	}
	return vec, nil
}
