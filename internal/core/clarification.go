package core

// QuestionType enumerates the supported answer widgets.
type QuestionType string

const (
	QuestionText        QuestionType = "text"
	QuestionChoice      QuestionType = "choice"
	QuestionMultiChoice QuestionType = "multi_choice"
	QuestionScale       QuestionType = "scale"
	QuestionBoolean     QuestionType = "boolean"
)

// QuestionCategory groups questions by the requirement they fill. Dedup
// across rounds happens by category, not exact text, since phrasing varies.
type QuestionCategory string

const (
	CategoryAudience  QuestionCategory = "audience"
	CategoryContent   QuestionCategory = "content"
	CategoryStyle     QuestionCategory = "style"
	CategoryLogistics QuestionCategory = "logistics"
	CategoryGeneral   QuestionCategory = "general"
)

// ValidCategory checks a question category.
func ValidCategory(c QuestionCategory) bool {
	switch c {
	case CategoryAudience, CategoryContent, CategoryStyle, CategoryLogistics, CategoryGeneral:
		return true
	default:
		return false
	}
}

// QuestionPriority orders questions within a round.
type QuestionPriority string

const (
	PriorityHigh   QuestionPriority = "high"
	PriorityMedium QuestionPriority = "medium"
	PriorityLow    QuestionPriority = "low"
)

// ClarificationQuestion is a single question shown to the user.
type ClarificationQuestion struct {
	QuestionID string           `json:"question_id" yaml:"question_id"`
	Question   string           `json:"question" yaml:"question"`
	Type       QuestionType     `json:"question_type" yaml:"question_type"`
	Options    []string         `json:"options,omitempty" yaml:"options,omitempty"`
	Required   bool             `json:"required" yaml:"required"`
	Context    string           `json:"context,omitempty" yaml:"context,omitempty"`
	Priority   QuestionPriority `json:"priority" yaml:"priority"`
	Category   QuestionCategory `json:"category" yaml:"category"`
}

// ClarificationRound is one batch of questions and its round bookkeeping.
type ClarificationRound struct {
	RoundID      string                  `json:"round_id" yaml:"round_id"`
	Questions    []ClarificationQuestion `json:"questions" yaml:"questions"`
	Context      string                  `json:"context,omitempty" yaml:"context,omitempty"`
	CurrentRound int                     `json:"current_round" yaml:"current_round"`
	MaxRounds    int                     `json:"max_rounds" yaml:"max_rounds"`
}

// Categories returns the set of categories asked in this round.
func (r ClarificationRound) Categories() map[QuestionCategory]bool {
	cats := make(map[QuestionCategory]bool, len(r.Questions))
	for _, q := range r.Questions {
		cats[q.Category] = true
	}
	return cats
}

// ClarificationResponse is the user's answers to one round. Consumed
// exactly once to merge into accumulated requirements.
type ClarificationResponse struct {
	RoundID          string            `json:"round_id" yaml:"round_id"`
	Responses        map[string]string `json:"responses" yaml:"responses"`
	SkippedQuestions []string          `json:"skipped_questions,omitempty" yaml:"skipped_questions,omitempty"`
}
