package agent

import (
	"context"
	"testing"

	"github.com/slidewise/deckd/internal/adapters/llm"
	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/logging"
)

func TestAnalyzeGreeting(t *testing.T) {
	a := NewAnalyzer(llm.NewMockRunner(), logging.NewNop())
	for _, text := range []string{"hi", "Hello!", "  hey ", "good morning"} {
		got := a.Analyze(context.Background(), core.UserRequest{Text: text}, nil)
		if got.DetectedIntent != core.IntentGreeting {
			t.Errorf("Analyze(%q).DetectedIntent = %q, want greeting", text, got.DetectedIntent)
		}
	}
	got := a.Analyze(context.Background(), core.UserRequest{Text: "hive architecture overview"}, nil)
	if got.DetectedIntent == core.IntentGreeting {
		t.Error("substring of greeting word misclassified as greeting")
	}
}

func TestAnalyzeFallbackNeverFails(t *testing.T) {
	broken := &llm.MockRunner{Fail: core.ErrNetwork("simulated outage")}
	a := NewAnalyzer(broken, logging.NewNop())

	got := a.Analyze(context.Background(), core.UserRequest{Text: "Create a presentation about AI"}, nil)
	if got == nil {
		t.Fatal("Analyze() returned nil under capability failure")
	}
	if got.CompletenessScore != 0.5 {
		t.Errorf("fallback score = %v, want 0.5", got.CompletenessScore)
	}
	if got.DetectedIntent != core.IntentPresentation {
		t.Errorf("fallback intent = %q, want presentation", got.DetectedIntent)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("fallback analysis invalid: %v", err)
	}
}

func TestAnalyzeScoreMonotonicWithRequirements(t *testing.T) {
	broken := &llm.MockRunner{Fail: core.ErrNetwork("simulated outage")}
	a := NewAnalyzer(broken, logging.NewNop())
	ctx := context.Background()
	input := core.UserRequest{Text: "Create a presentation about AI"}

	requirements := map[string]string{}
	prev := a.Analyze(ctx, input, requirements).CompletenessScore

	for _, field := range []string{"target_audience", "duration", "style", "content_focus"} {
		requirements[field] = "answered"
		score := a.Analyze(ctx, input, requirements).CompletenessScore
		if score < prev {
			t.Errorf("score regressed from %v to %v after adding %s", prev, score, field)
		}
		prev = score
	}
	if prev > 0.9 {
		t.Errorf("score = %v, fallback must stay below full confidence", prev)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := NewAnalyzer(llm.NewMockRunner(), logging.NewNop())
	ctx := context.Background()
	input := core.UserRequest{Text: "Analyze the following: sales deck for execs"}

	first := a.Analyze(ctx, input, nil)
	second := a.Analyze(ctx, input, nil)
	if first.CompletenessScore != second.CompletenessScore || first.DetectedIntent != second.DetectedIntent {
		t.Errorf("identical inputs diverged: %+v vs %+v", first, second)
	}
}
