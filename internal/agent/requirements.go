package agent

import "github.com/slidewise/deckd/internal/core"

// defaultRequirements fill gaps when clarification rounds are exhausted.
var defaultRequirements = map[string]string{
	"target_audience": "general business audience",
	"duration":        "15-20 minutes",
	"style":           "professional",
}

// FillDefaultRequirements sets best-available defaults for any missing
// field, so round exhaustion forces progress instead of another round.
func FillDefaultRequirements(requirements map[string]string) {
	for key, value := range defaultRequirements {
		if requirements[key] == "" {
			requirements[key] = value
		}
	}
}

// MergeResponses folds one round's answers into the accumulated
// requirements. Answers map onto requirement fields by the question's
// category; skipped questions contribute nothing.
func MergeResponses(requirements map[string]string, round core.ClarificationRound, resp core.ClarificationResponse) {
	skipped := make(map[string]bool, len(resp.SkippedQuestions))
	for _, id := range resp.SkippedQuestions {
		skipped[id] = true
	}

	byID := make(map[string]core.ClarificationQuestion, len(round.Questions))
	for _, q := range round.Questions {
		byID[q.QuestionID] = q
	}

	for questionID, answer := range resp.Responses {
		if answer == "" || skipped[questionID] {
			continue
		}
		q, known := byID[questionID]
		if !known {
			continue
		}
		switch q.Category {
		case core.CategoryAudience:
			requirements["target_audience"] = answer
		case core.CategoryLogistics:
			requirements["duration"] = answer
		case core.CategoryStyle:
			requirements["style"] = answer
		case core.CategoryContent:
			requirements["content_focus"] = answer
		default:
			requirements[questionID] = answer
		}
	}
}
