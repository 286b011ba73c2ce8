package workflow

import (
	"github.com/google/uuid"

	"github.com/slidewise/deckd/internal/core"
)

// Assemble deterministically merges the structure skeleton with whatever
// agent outputs are available. It succeeds even with zero optional agent
// outputs, degrading to skeleton-only slides.
func Assemble(state *core.WorkflowState) *core.Presentation {
	structure := state.Structure
	if structure == nil {
		structure = &core.Structure{Title: "Presentation"}
	}

	theme := core.DefaultTheme()
	if structure.ThemeStyle != "" {
		theme.Name = structure.ThemeStyle
	}

	presentation := &core.Presentation{
		PresentationID: uuid.NewString(),
		Title:          structure.Title,
		Subtitle:       structure.Subtitle,
		Description:    structure.Description,
		Theme:          theme,
		Metadata: map[string]interface{}{
			"request_id":       state.RequestID,
			"agents_completed": len(state.CompletedAgents),
			"agents_failed":    len(state.AgentErrors),
			"partial":          len(state.AgentErrors) > 0,
		},
	}

	for _, outline := range structure.SlideOutlines {
		slide := core.Slide{
			SlideID:      uuid.NewString(),
			SlideNumber:  outline.SlideNumber,
			Title:        outline.Title,
			LayoutType:   outline.LayoutType,
			SpeakerNotes: outline.Notes,
		}
		// Collect components in active-agent order so assembly output is
		// stable regardless of completion order.
		for _, name := range state.ActiveAgents {
			output := state.AgentOutputs[name]
			if output == nil {
				continue
			}
			slide.Components = append(slide.Components, output.Components[outline.SlideNumber]...)
		}
		if len(slide.Components) == 0 {
			slide.Components = skeletonComponents(outline)
		}
		presentation.Slides = append(presentation.Slides, slide)
	}
	return presentation
}

// skeletonComponents renders an outline's own content when no agent
// contributed to the slide.
func skeletonComponents(outline core.SlideOutline) []core.SlideComponent {
	content := outline.Title
	for _, point := range outline.ContentPoints {
		content += "\n" + point
	}
	return []core.SlideComponent{{Type: "text", Content: content}}
}
