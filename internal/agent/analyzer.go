// Package agent holds the cognitive pieces of the pipeline: the
// requirement analyzer, the clarification engine, the structure builder,
// and the downstream content agents. Every component degrades to a
// deterministic fallback when the model capability is unavailable, so the
// workflow never hard-fails on analysis.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/logging"
)

// greeting words for the heuristic intent check. Matched against the
// whole trimmed input, not substrings, so "hive architecture" is not a
// greeting.
var greetingWords = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true,
	"good morning": true, "good afternoon": true, "good evening": true,
	"howdy": true, "hi there": true, "hello there": true, "thanks": true,
	"thank you": true,
}

// Analyzer turns raw user text into a structured requirement analysis.
type Analyzer struct {
	llm core.LLMRunner
	log *logging.Logger
}

// NewAnalyzer creates an analyzer backed by the given model runner.
func NewAnalyzer(llm core.LLMRunner, log *logging.Logger) *Analyzer {
	return &Analyzer{llm: llm, log: log}
}

// Analyze produces a requirement analysis for the input plus whatever
// requirement fields have accumulated. It never returns an error for
// capability failures: the deterministic fallback keeps the workflow
// moving with a low-confidence result.
func (a *Analyzer) Analyze(ctx context.Context, input core.UserRequest, requirements map[string]string) *core.RequirementAnalysis {
	if isGreeting(input.Text) {
		return &core.RequirementAnalysis{
			CompletenessScore: 1.0,
			DetectedIntent:    core.IntentGreeting,
			PresentationType:  "none",
			EstimatedSlides:   1,
			ComplexityLevel:   core.ComplexitySimple,
		}
	}

	result, err := a.llm.Run(ctx, core.LLMRequest{
		Prompt:      analysisPrompt(input, requirements),
		Temperature: 0.3,
	})
	if err != nil {
		a.log.WithContext(ctx).Warn("analysis model call failed, using fallback",
			"error", err.Error())
		return a.fallback(input, requirements)
	}

	analysis, err := parseAnalysis(result)
	if err != nil {
		a.log.WithContext(ctx).Warn("analysis response unparseable, using fallback",
			"error", err.Error())
		return a.fallback(input, requirements)
	}

	// The model scores the raw text; answered requirement fields raise
	// the floor so the score never regresses as information accumulates.
	if floor := fallbackScore(requirements); analysis.CompletenessScore < floor {
		analysis.CompletenessScore = floor
	}
	return analysis
}

func analysisPrompt(input core.UserRequest, requirements map[string]string) string {
	var b strings.Builder
	b.WriteString("Analyze the following presentation request:\n\n")
	fmt.Fprintf(&b, "User Input: %s\n", input.Text)
	fmt.Fprintf(&b, "Attachments: %d files\n", input.Attachments)
	if len(input.UIReferences) > 0 {
		fmt.Fprintf(&b, "UI References: %s\n", strings.Join(input.UIReferences, ", "))
	}
	if len(requirements) > 0 {
		b.WriteString("\nKnown requirements:\n")
		for k, v := range requirements {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	b.WriteString(`
Analyze and provide JSON with:
1. completeness_score (0-1) based on having enough information
2. missing_information: list of missing pieces
3. detected_intent: "greeting" or "presentation"
4. presentation_type
5. estimated_slides
6. complexity_level: simple, moderate, or complex
7. key_topics
8. suggested_flow

Consider whether the target audience, purpose, time constraints, and
desired style are specified.`)
	return b.String()
}

func parseAnalysis(result *core.LLMResult) (*core.RequirementAnalysis, error) {
	if result.Parsed == nil {
		return nil, core.ErrCapability(core.CodeParseFailed, "analysis response is not structured")
	}
	analysis := &core.RequirementAnalysis{
		CompletenessScore:  floatField(result.Parsed, "completeness_score", 0.5),
		MissingInformation: stringSlice(result.Parsed["missing_information"]),
		DetectedIntent:     core.Intent(stringField(result.Parsed, "detected_intent", string(core.IntentPresentation))),
		PresentationType:   stringField(result.Parsed, "presentation_type", "general"),
		EstimatedSlides:    intField(result.Parsed, "estimated_slides", 10),
		ComplexityLevel:    core.Complexity(stringField(result.Parsed, "complexity_level", string(core.ComplexityModerate))),
		KeyTopics:          stringSlice(result.Parsed["key_topics"]),
		SuggestedFlow:      stringSlice(result.Parsed["suggested_flow"]),
	}
	if analysis.DetectedIntent != core.IntentGreeting {
		analysis.DetectedIntent = core.IntentPresentation
	}
	if err := analysis.Validate(); err != nil {
		return nil, err
	}
	return analysis, nil
}

// fallback is the deterministic low-confidence analysis used when the
// model capability is unavailable or unparseable.
func (a *Analyzer) fallback(input core.UserRequest, requirements map[string]string) *core.RequirementAnalysis {
	missing := []string{}
	for _, field := range []string{"target_audience", "duration", "style"} {
		if requirements[field] == "" {
			missing = append(missing, field)
		}
	}
	return &core.RequirementAnalysis{
		CompletenessScore:  fallbackScore(requirements),
		MissingInformation: missing,
		DetectedIntent:     core.IntentPresentation,
		PresentationType:   "general",
		EstimatedSlides:    10,
		ComplexityLevel:    core.ComplexityModerate,
		KeyTopics:          []string{firstWords(input.Text, 6)},
		SuggestedFlow:      []string{"Introduction", "Content", "Conclusion"},
	}
}

// fallbackScore starts at the fixed low-confidence default and rises with
// each answered requirement field, so the score is monotonically
// non-decreasing as information accumulates.
func fallbackScore(requirements map[string]string) float64 {
	score := 0.5
	for _, field := range []string{"target_audience", "duration", "style", "content_focus"} {
		if requirements[field] != "" {
			score += 0.1
		}
	}
	if score > 0.9 {
		score = 0.9
	}
	return score
}

func isGreeting(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.Trim(normalized, "!.,?")
	return greetingWords[normalized]
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	if len(words) == 0 {
		return "general"
	}
	return strings.Join(words, " ")
}

// JSON field helpers tolerant of the loose typing of parsed model output.

func floatField(m map[string]interface{}, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func intField(m map[string]interface{}, key string, def int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func stringField(m map[string]interface{}, key, def string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return def
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
