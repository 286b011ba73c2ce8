package core

// LayoutType enumerates supported slide layouts.
type LayoutType string

const (
	LayoutHero         LayoutType = "hero"
	LayoutContent      LayoutType = "content"
	LayoutChartFocused LayoutType = "chart_focused"
	LayoutComparison   LayoutType = "comparison"
	LayoutClosing      LayoutType = "closing"
)

// SlideOutline is the structural skeleton of one slide before content
// generation.
type SlideOutline struct {
	SlideNumber   int        `json:"slide_number" yaml:"slide_number"`
	Title         string     `json:"title" yaml:"title"`
	LayoutType    LayoutType `json:"layout_type" yaml:"layout_type"`
	ContentPoints []string   `json:"content_points,omitempty" yaml:"content_points,omitempty"`
	Notes         string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Structure is the presentation skeleton produced by the structure
// builder. Immutable once generation begins; consumed by assembly.
type Structure struct {
	Title         string         `json:"title" yaml:"title"`
	Subtitle      string         `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	SlideOutlines []SlideOutline `json:"slide_outlines" yaml:"slide_outlines"`
	ThemeStyle    string         `json:"theme_style,omitempty" yaml:"theme_style,omitempty"`
}

// SlideComponent is one piece of rendered slide content contributed by an
// agent.
type SlideComponent struct {
	Type    string                 `json:"type" yaml:"type"`
	Content string                 `json:"content" yaml:"content"`
	Source  AgentName              `json:"source,omitempty" yaml:"source,omitempty"`
	Props   map[string]interface{} `json:"props,omitempty" yaml:"props,omitempty"`
}

// Slide is a fully assembled slide.
type Slide struct {
	SlideID      string           `json:"slide_id" yaml:"slide_id"`
	SlideNumber  int              `json:"slide_number" yaml:"slide_number"`
	Title        string           `json:"title" yaml:"title"`
	Subtitle     string           `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	LayoutType   LayoutType       `json:"layout_type" yaml:"layout_type"`
	Components   []SlideComponent `json:"components" yaml:"components"`
	SpeakerNotes string           `json:"speaker_notes,omitempty" yaml:"speaker_notes,omitempty"`
}

// ColorPalette holds the theme colors.
type ColorPalette struct {
	Primary       string `json:"primary" yaml:"primary"`
	Secondary     string `json:"secondary" yaml:"secondary"`
	Accent        string `json:"accent" yaml:"accent"`
	Background    string `json:"background" yaml:"background"`
	Text          string `json:"text" yaml:"text"`
	TextSecondary string `json:"text_secondary" yaml:"text_secondary"`
}

// Typography holds the theme fonts.
type Typography struct {
	HeadingFont string `json:"heading_font" yaml:"heading_font"`
	BodyFont    string `json:"body_font" yaml:"body_font"`
	BaseSize    int    `json:"base_size" yaml:"base_size"`
}

// Theme is the visual theme applied to an assembled presentation.
type Theme struct {
	Name       string       `json:"name" yaml:"name"`
	Colors     ColorPalette `json:"colors" yaml:"colors"`
	Typography Typography   `json:"typography" yaml:"typography"`
}

// DefaultTheme returns the stock professional theme.
func DefaultTheme() Theme {
	return Theme{
		Name: "default",
		Colors: ColorPalette{
			Primary:       "#0066CC",
			Secondary:     "#4D94FF",
			Accent:        "#FF6B6B",
			Background:    "#FFFFFF",
			Text:          "#333333",
			TextSecondary: "#666666",
		},
		Typography: Typography{
			HeadingFont: "Arial",
			BodyFont:    "Arial",
			BaseSize:    16,
		},
	}
}

// Presentation is the final in-memory structured document.
type Presentation struct {
	PresentationID string                 `json:"presentation_id" yaml:"presentation_id"`
	Title          string                 `json:"title" yaml:"title"`
	Subtitle       string                 `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Description    string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Slides         []Slide                `json:"slides" yaml:"slides"`
	Theme          Theme                  `json:"theme" yaml:"theme"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// AgentName identifies a downstream content agent.
type AgentName string

const (
	AgentUXArchitect    AgentName = "ux_architect"
	AgentResearcher     AgentName = "researcher"
	AgentVisualDesigner AgentName = "visual_designer"
	AgentDataAnalyst    AgentName = "data_analyst"
	AgentUXAnalyst      AgentName = "ux_analyst"
)

// AllAgents lists every known content agent.
var AllAgents = []AgentName{
	AgentUXArchitect,
	AgentResearcher,
	AgentVisualDesigner,
	AgentDataAnalyst,
	AgentUXAnalyst,
}

// ValidAgentName reports whether name is a known content agent.
func ValidAgentName(name AgentName) bool {
	for _, a := range AllAgents {
		if a == name {
			return true
		}
	}
	return false
}

// AgentOutput is what a content agent contributes for a request.
type AgentOutput struct {
	Agent      AgentName                `json:"agent" yaml:"agent"`
	Components map[int][]SlideComponent `json:"components" yaml:"components"` // slide number -> components
	Confidence float64                  `json:"confidence" yaml:"confidence"`
}
