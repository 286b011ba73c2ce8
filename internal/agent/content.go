package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/slidewise/deckd/internal/core"
)

// contentAgent is a deterministic downstream specialist. Each instance
// knows which layouts it contributes to and what kind of component it
// emits. The one implementation covers all five specialties; the
// behavior split is data, not code.
type contentAgent struct {
	name     core.AgentName
	kind     string
	matches  func(core.SlideOutline) bool
	generate func(core.SlideOutline) core.SlideComponent
}

// NewContentAgents returns the full set of downstream content agents,
// keyed for fan-out dispatch.
func NewContentAgents() map[core.AgentName]core.ContentAgent {
	agents := []*contentAgent{
		{
			name:    core.AgentUXArchitect,
			kind:    "text",
			matches: func(core.SlideOutline) bool { return true },
			generate: func(o core.SlideOutline) core.SlideComponent {
				body := strings.Join(o.ContentPoints, "\n")
				if body == "" {
					body = o.Title
				}
				return component("text", body, core.AgentUXArchitect)
			},
		},
		{
			name:    core.AgentResearcher,
			kind:    "notes",
			matches: func(o core.SlideOutline) bool { return o.LayoutType != core.LayoutHero },
			generate: func(o core.SlideOutline) core.SlideComponent {
				return component("notes", fmt.Sprintf("Supporting research for %q", o.Title), core.AgentResearcher)
			},
		},
		{
			name:    core.AgentVisualDesigner,
			kind:    "image",
			matches: func(o core.SlideOutline) bool { return mentionsAny(o, "visual", "image") },
			generate: func(o core.SlideOutline) core.SlideComponent {
				return component("image", fmt.Sprintf("Visual concept for %q", o.Title), core.AgentVisualDesigner)
			},
		},
		{
			name: core.AgentDataAnalyst,
			kind: "chart",
			matches: func(o core.SlideOutline) bool {
				return o.LayoutType == core.LayoutChartFocused || mentionsAny(o, "chart", "data")
			},
			generate: func(o core.SlideOutline) core.SlideComponent {
				return component("chart", fmt.Sprintf("Chart placeholder for %q", o.Title), core.AgentDataAnalyst)
			},
		},
		{
			name:    core.AgentUXAnalyst,
			kind:    "diagram",
			matches: func(o core.SlideOutline) bool { return mentionsAny(o, "diagram", "process") },
			generate: func(o core.SlideOutline) core.SlideComponent {
				return component("diagram", fmt.Sprintf("Process diagram for %q", o.Title), core.AgentUXAnalyst)
			},
		},
	}

	out := make(map[core.AgentName]core.ContentAgent, len(agents))
	for _, a := range agents {
		out[a.name] = a
	}
	return out
}

// Name implements core.ContentAgent.
func (a *contentAgent) Name() core.AgentName { return a.name }

// Generate implements core.ContentAgent. It is cancellable between
// slides; a canceled agent reports a timeout-category error so the
// barrier records it as failed rather than hung.
func (a *contentAgent) Generate(ctx context.Context, task core.AgentTask) (*core.AgentOutput, error) {
	if task.Structure == nil {
		return nil, core.ErrValidation(core.CodeInvalidState, "agent task has no structure")
	}

	output := &core.AgentOutput{
		Agent:      a.name,
		Components: make(map[int][]core.SlideComponent),
		Confidence: 0.9,
	}
	for _, outline := range task.Structure.SlideOutlines {
		select {
		case <-ctx.Done():
			return nil, core.ErrTimeout(fmt.Sprintf("agent %s canceled", a.name)).WithCause(ctx.Err())
		default:
		}
		if !a.matches(outline) {
			continue
		}
		output.Components[outline.SlideNumber] = append(
			output.Components[outline.SlideNumber], a.generate(outline))
	}
	return output, nil
}

func component(kind, content string, source core.AgentName) core.SlideComponent {
	return core.SlideComponent{Type: kind, Content: content, Source: source}
}

func mentionsAny(o core.SlideOutline, words ...string) bool {
	text := strings.ToLower(o.Title + " " + strings.Join(o.ContentPoints, " ") + " " + o.Notes)
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
