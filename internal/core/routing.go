package core

import "strings"

// RouteAgents determines which content agents a structure activates.
// Routing is deterministic and content-based: a slide mentioning visual
// content activates the visual designer, data/chart activates the data
// analyst, diagram/process activates the UX analyst. The architect and
// researcher are always active.
//
// This is the single routing function; the structure builder and the state
// machine both consume it so they can never disagree.
func RouteAgents(s *Structure) []AgentName {
	agents := []AgentName{AgentUXArchitect, AgentResearcher}
	if s == nil {
		return agents
	}

	var visual, data, diagram bool
	for _, outline := range s.SlideOutlines {
		text := strings.ToLower(outline.Title + " " + strings.Join(outline.ContentPoints, " ") + " " + outline.Notes)
		if strings.Contains(text, "visual") || strings.Contains(text, "image") {
			visual = true
		}
		if strings.Contains(text, "chart") || strings.Contains(text, "data") {
			data = true
		}
		if strings.Contains(text, "diagram") || strings.Contains(text, "process") {
			diagram = true
		}
		if outline.LayoutType == LayoutChartFocused {
			data = true
		}
	}

	if visual {
		agents = append(agents, AgentVisualDesigner)
	}
	if data {
		agents = append(agents, AgentDataAnalyst)
	}
	if diagram {
		agents = append(agents, AgentUXAnalyst)
	}
	return agents
}
