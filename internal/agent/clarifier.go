package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/logging"
)

// maxQuestionsPerRound caps a round regardless of configuration.
const maxQuestionsHardCap = 5

// Clarifier generates clarification rounds, deduplicating by question
// category across rounds.
type Clarifier struct {
	llm          core.LLMRunner
	log          *logging.Logger
	maxRounds    int
	maxQuestions int
}

// NewClarifier creates a clarification engine.
func NewClarifier(llm core.LLMRunner, log *logging.Logger, maxRounds, maxQuestions int) *Clarifier {
	if maxRounds < 1 {
		maxRounds = 3
	}
	if maxQuestions < 1 || maxQuestions > maxQuestionsHardCap {
		maxQuestions = maxQuestionsHardCap
	}
	return &Clarifier{llm: llm, log: log, maxRounds: maxRounds, maxQuestions: maxQuestions}
}

// MaxRounds returns the configured round ceiling.
func (c *Clarifier) MaxRounds() int { return c.maxRounds }

// GenerateRound produces the next clarification round. It refuses with an
// out-of-rounds error when the ceiling is reached; the caller is expected
// to force progression to generation instead of asking again.
func (c *Clarifier) GenerateRound(ctx context.Context, missing []string, prior []core.ClarificationRound) (*core.ClarificationRound, error) {
	round := len(prior) + 1
	if round > c.maxRounds {
		return nil, core.ErrOutOfRounds(round, c.maxRounds)
	}

	asked := askedCategories(prior)
	questions := c.modelQuestions(ctx, missing, prior)
	if len(questions) == 0 {
		questions = fallbackQuestions(missing, c.maxQuestions)
	}
	questions = dedupByCategory(questions, asked, c.maxQuestions)

	if len(questions) == 0 {
		// Every category was already covered; ask one open question so
		// the round still gives the user a way to add information.
		questions = []core.ClarificationQuestion{genericQuestion("anything else you want the presentation to cover")}
	}

	return &core.ClarificationRound{
		RoundID:      uuid.NewString(),
		Questions:    questions,
		Context:      "I need some additional information to build the right presentation:",
		CurrentRound: round,
		MaxRounds:    c.maxRounds,
	}, nil
}

func askedCategories(prior []core.ClarificationRound) map[core.QuestionCategory]bool {
	asked := make(map[core.QuestionCategory]bool)
	for _, r := range prior {
		for cat := range r.Categories() {
			asked[cat] = true
		}
	}
	return asked
}

// modelQuestions asks the model for a question set. Any failure returns
// nil; the caller falls back to generic questions.
func (c *Clarifier) modelQuestions(ctx context.Context, missing []string, prior []core.ClarificationRound) []core.ClarificationQuestion {
	if len(missing) == 0 {
		return nil
	}
	result, err := c.llm.Run(ctx, core.LLMRequest{
		Prompt:      clarificationPrompt(missing, prior),
		Temperature: 0.5,
	})
	if err != nil {
		c.log.WithContext(ctx).Warn("clarification model call failed, using fallback",
			"error", err.Error())
		return nil
	}
	if result.Parsed == nil {
		return nil
	}
	raw, ok := result.Parsed["questions"].([]interface{})
	if !ok {
		return nil
	}

	questions := make([]core.ClarificationQuestion, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		q := core.ClarificationQuestion{
			QuestionID: uuid.NewString(),
			Question:   stringField(m, "question", ""),
			Type:       core.QuestionType(stringField(m, "question_type", string(core.QuestionText))),
			Options:    stringSlice(m["options"]),
			Required:   boolField(m, "required"),
			Context:    stringField(m, "context", ""),
			Priority:   core.QuestionPriority(stringField(m, "priority", string(core.PriorityMedium))),
			Category:   core.QuestionCategory(stringField(m, "category", string(core.CategoryGeneral))),
		}
		if q.Question == "" {
			continue
		}
		if !core.ValidCategory(q.Category) {
			q.Category = core.CategoryGeneral
		}
		questions = append(questions, q)
	}
	return questions
}

func clarificationPrompt(missing []string, prior []core.ClarificationRound) string {
	var b strings.Builder
	b.WriteString("Generate clarification questions for the following missing information:\n\n")
	for _, m := range missing {
		fmt.Fprintf(&b, "- %s\n", m)
	}
	if len(prior) > 0 {
		b.WriteString("\nCategories already asked in previous rounds:\n")
		for cat := range askedCategories(prior) {
			fmt.Fprintf(&b, "- %s\n", cat)
		}
	}
	b.WriteString(`
Return JSON {"questions": [...]} with 3-5 specific questions. For each:
question, question_type (text|choice|multi_choice|scale|boolean), options,
required, context, priority (high|medium|low), and category
(audience|content|style|logistics|general). Never repeat an already-asked
category.`)
	return b.String()
}

// fallbackQuestions builds one generic question per missing-information
// item, bounded, so a model outage never fails the round.
func fallbackQuestions(missing []string, limit int) []core.ClarificationQuestion {
	if len(missing) == 0 {
		missing = []string{"your goals for this presentation"}
	}
	if len(missing) > limit {
		missing = missing[:limit]
	}
	questions := make([]core.ClarificationQuestion, 0, len(missing))
	for _, item := range missing {
		q := genericQuestion(item)
		q.Category = categorize(item)
		questions = append(questions, q)
	}
	return questions
}

func genericQuestion(topic string) core.ClarificationQuestion {
	return core.ClarificationQuestion{
		QuestionID: uuid.NewString(),
		Question:   fmt.Sprintf("Could you please provide more details about %s?", topic),
		Type:       core.QuestionText,
		Required:   true,
		Priority:   core.PriorityMedium,
		Category:   core.CategoryGeneral,
	}
}

// categorize maps a missing-information item onto a question category.
func categorize(item string) core.QuestionCategory {
	lower := strings.ToLower(item)
	switch {
	case strings.Contains(lower, "audience") || strings.Contains(lower, "who"):
		return core.CategoryAudience
	case strings.Contains(lower, "duration") || strings.Contains(lower, "time") || strings.Contains(lower, "length") || strings.Contains(lower, "deadline"):
		return core.CategoryLogistics
	case strings.Contains(lower, "style") || strings.Contains(lower, "tone") || strings.Contains(lower, "design"):
		return core.CategoryStyle
	case strings.Contains(lower, "topic") || strings.Contains(lower, "content") || strings.Contains(lower, "detail"):
		return core.CategoryContent
	default:
		return core.CategoryGeneral
	}
}

func dedupByCategory(questions []core.ClarificationQuestion, asked map[core.QuestionCategory]bool, limit int) []core.ClarificationQuestion {
	out := make([]core.ClarificationQuestion, 0, len(questions))
	seen := make(map[core.QuestionCategory]bool)
	for _, q := range questions {
		if asked[q.Category] || seen[q.Category] {
			continue
		}
		seen[q.Category] = true
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}

func boolField(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}
