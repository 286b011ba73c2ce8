package core

// Intent is the analyzer's classification of the user's input.
type Intent string

const (
	IntentGreeting     Intent = "greeting"
	IntentPresentation Intent = "presentation"
)

// Complexity buckets the estimated effort for a request.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// RequirementAnalysis is the structured result of analyzing a request.
type RequirementAnalysis struct {
	CompletenessScore  float64    `json:"completeness_score" yaml:"completeness_score"`
	MissingInformation []string   `json:"missing_information" yaml:"missing_information"`
	DetectedIntent     Intent     `json:"detected_intent" yaml:"detected_intent"`
	PresentationType   string     `json:"presentation_type" yaml:"presentation_type"`
	EstimatedSlides    int        `json:"estimated_slides" yaml:"estimated_slides"`
	ComplexityLevel    Complexity `json:"complexity_level" yaml:"complexity_level"`
	KeyTopics          []string   `json:"key_topics" yaml:"key_topics"`
	SuggestedFlow      []string   `json:"suggested_flow" yaml:"suggested_flow"`
}

// Validate checks analysis bounds.
func (a *RequirementAnalysis) Validate() error {
	if a.CompletenessScore < 0 || a.CompletenessScore > 1 {
		return ErrValidation("SCORE_OUT_OF_RANGE", "completeness score must be in [0,1]")
	}
	if a.EstimatedSlides < 1 {
		return ErrValidation("SLIDES_OUT_OF_RANGE", "estimated slides must be at least 1")
	}
	return nil
}
