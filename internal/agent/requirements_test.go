package agent

import (
	"testing"

	"github.com/slidewise/deckd/internal/core"
)

func TestMergeResponsesByCategory(t *testing.T) {
	round := core.ClarificationRound{
		RoundID: "r1",
		Questions: []core.ClarificationQuestion{
			{QuestionID: "q1", Category: core.CategoryAudience},
			{QuestionID: "q2", Category: core.CategoryLogistics},
			{QuestionID: "q3", Category: core.CategoryStyle},
			{QuestionID: "q4", Category: core.CategoryContent},
			{QuestionID: "q5", Category: core.CategoryGeneral},
		},
	}
	resp := core.ClarificationResponse{
		RoundID: "r1",
		Responses: map[string]string{
			"q1": "engineering leadership",
			"q2": "30 minutes",
			"q3": "minimal",
			"q4": "platform migration",
			"q5": "avoid jargon",
			"q9": "unknown question ignored",
		},
		SkippedQuestions: []string{"q3"},
	}

	requirements := map[string]string{}
	MergeResponses(requirements, round, resp)

	if requirements["target_audience"] != "engineering leadership" {
		t.Errorf("target_audience = %q", requirements["target_audience"])
	}
	if requirements["duration"] != "30 minutes" {
		t.Errorf("duration = %q", requirements["duration"])
	}
	if requirements["style"] != "" {
		t.Errorf("skipped question leaked into requirements: %q", requirements["style"])
	}
	if requirements["content_focus"] != "platform migration" {
		t.Errorf("content_focus = %q", requirements["content_focus"])
	}
	if requirements["q5"] != "avoid jargon" {
		t.Errorf("general answer keyed by question id missing: %v", requirements)
	}
	if _, ok := requirements["q9"]; ok {
		t.Error("answer to unknown question was merged")
	}
}

func TestFillDefaultRequirements(t *testing.T) {
	requirements := map[string]string{"target_audience": "board members"}
	FillDefaultRequirements(requirements)

	if requirements["target_audience"] != "board members" {
		t.Error("existing value overwritten by default")
	}
	if requirements["duration"] != "15-20 minutes" {
		t.Errorf("duration default = %q", requirements["duration"])
	}
	if requirements["style"] != "professional" {
		t.Errorf("style default = %q", requirements["style"])
	}
}
