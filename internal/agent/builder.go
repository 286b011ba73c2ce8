package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/logging"
)

// Builder synthesizes a presentation structure from accumulated
// requirements, optionally informed by similarity search over past
// structures.
type Builder struct {
	llm       core.LLMRunner
	embedder  core.Embedder
	store     core.PresentationStore
	log       *logging.Logger
	minSlides int
	maxSlides int
}

// NewBuilder creates a structure builder. store and embedder may be nil;
// similarity informs the prompt but is never required.
func NewBuilder(llm core.LLMRunner, embedder core.Embedder, store core.PresentationStore, log *logging.Logger, minSlides, maxSlides int) *Builder {
	if minSlides < 1 {
		minSlides = 5
	}
	if maxSlides < minSlides {
		maxSlides = minSlides + 15
	}
	return &Builder{
		llm:       llm,
		embedder:  embedder,
		store:     store,
		log:       log,
		minSlides: minSlides,
		maxSlides: maxSlides,
	}
}

// Build produces a structure whose slide count is always within the
// configured bounds, clamping the analyzer's estimate. Similarity lookups
// and model failures degrade to a deterministic skeleton.
func (b *Builder) Build(ctx context.Context, requirements map[string]string, analysis *core.RequirementAnalysis) *core.Structure {
	similar := b.findSimilar(ctx, requirements)

	structure := b.modelStructure(ctx, requirements, analysis, similar)
	if structure == nil {
		structure = b.fallbackStructure(requirements, analysis)
	}
	b.normalize(structure, analysis)
	return structure
}

// Embed returns the similarity embedding for a requirements map, or nil
// when no embedder is configured.
func (b *Builder) Embed(ctx context.Context, requirements map[string]string) []float32 {
	if b.embedder == nil {
		return nil
	}
	vec, err := b.embedder.Embed(ctx, requirementsText(requirements))
	if err != nil {
		b.log.WithContext(ctx).Warn("embedding failed", "error", err.Error())
		return nil
	}
	return vec
}

func (b *Builder) findSimilar(ctx context.Context, requirements map[string]string) []core.StoredStructure {
	if b.store == nil || b.embedder == nil {
		return nil
	}
	vec := b.Embed(ctx, requirements)
	if vec == nil {
		return nil
	}
	similar, err := b.store.FindSimilar(ctx, vec, 5)
	if err != nil {
		b.log.WithContext(ctx).Warn("similarity search failed", "error", err.Error())
		return nil
	}
	return similar
}

func (b *Builder) modelStructure(ctx context.Context, requirements map[string]string, analysis *core.RequirementAnalysis, similar []core.StoredStructure) *core.Structure {
	result, err := b.llm.Run(ctx, core.LLMRequest{
		Prompt:      structurePrompt(requirements, analysis, similar),
		Temperature: 0.4,
	})
	if err != nil {
		b.log.WithContext(ctx).Warn("structure model call failed, using fallback",
			"error", err.Error())
		return nil
	}
	if result.Parsed == nil {
		return nil
	}

	structure := &core.Structure{
		Title:       stringField(result.Parsed, "title", ""),
		Subtitle:    stringField(result.Parsed, "subtitle", ""),
		Description: stringField(result.Parsed, "description", ""),
		ThemeStyle:  stringField(result.Parsed, "theme_style", requirements["style"]),
	}
	rawOutlines, ok := result.Parsed["slide_outlines"].([]interface{})
	if !ok || len(rawOutlines) == 0 {
		return nil
	}
	for _, item := range rawOutlines {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		structure.SlideOutlines = append(structure.SlideOutlines, core.SlideOutline{
			SlideNumber:   intField(m, "slide_number", len(structure.SlideOutlines)+1),
			Title:         stringField(m, "title", fmt.Sprintf("Slide %d", len(structure.SlideOutlines)+1)),
			LayoutType:    core.LayoutType(stringField(m, "layout_type", string(core.LayoutContent))),
			ContentPoints: stringSlice(m["content_points"]),
			Notes:         stringField(m, "notes", ""),
		})
	}
	if structure.Title == "" || len(structure.SlideOutlines) == 0 {
		return nil
	}
	return structure
}

func structurePrompt(requirements map[string]string, analysis *core.RequirementAnalysis, similar []core.StoredStructure) string {
	var b strings.Builder
	b.WriteString("Create a presentation structure based on:\n\nRequirements:\n")
	for _, k := range sortedKeys(requirements) {
		fmt.Fprintf(&b, "- %s: %s\n", k, requirements[k])
	}
	if analysis != nil {
		fmt.Fprintf(&b, "\nEstimated slides: %d\nKey topics: %s\n",
			analysis.EstimatedSlides, strings.Join(analysis.KeyTopics, ", "))
	}
	if len(similar) > 0 {
		b.WriteString("\nSimilar successful presentations:\n")
		for _, s := range similar {
			if s.Structure != nil {
				fmt.Fprintf(&b, "- %s (%d slides)\n", s.Structure.Title, len(s.Structure.SlideOutlines))
			}
		}
	}
	b.WriteString(`
Return JSON with title, subtitle, description, theme_style, and
slide_outlines: [{slide_number, title, layout_type
(hero|content|chart_focused|comparison|closing), content_points, notes}].`)
	return b.String()
}

// fallbackStructure is the deterministic skeleton used when the model is
// unavailable.
func (b *Builder) fallbackStructure(requirements map[string]string, analysis *core.RequirementAnalysis) *core.Structure {
	slides := 10
	title := "Presentation"
	if analysis != nil {
		slides = analysis.EstimatedSlides
		if len(analysis.KeyTopics) > 0 {
			title = analysis.KeyTopics[0]
		}
	}
	if focus := requirements["content_focus"]; focus != "" {
		title = focus
	}

	structure := &core.Structure{
		Title:       title,
		Description: "Generated presentation",
		ThemeStyle:  requirements["style"],
	}
	for i := 1; i <= slides; i++ {
		layout := core.LayoutContent
		slideTitle := fmt.Sprintf("Section %d", i-1)
		switch i {
		case 1:
			layout = core.LayoutHero
			slideTitle = title
		case slides:
			layout = core.LayoutClosing
			slideTitle = "Summary"
		}
		structure.SlideOutlines = append(structure.SlideOutlines, core.SlideOutline{
			SlideNumber:   i,
			Title:         slideTitle,
			LayoutType:    layout,
			ContentPoints: []string{"Content to be added"},
		})
	}
	return structure
}

// normalize clamps the slide count into bounds and renumbers outlines.
func (b *Builder) normalize(s *core.Structure, analysis *core.RequirementAnalysis) {
	// Pad up to the minimum with content slides before the closing one.
	for len(s.SlideOutlines) < b.minSlides {
		insertAt := len(s.SlideOutlines)
		if insertAt > 0 && s.SlideOutlines[insertAt-1].LayoutType == core.LayoutClosing {
			insertAt--
		}
		outline := core.SlideOutline{
			Title:         fmt.Sprintf("Additional Content %d", len(s.SlideOutlines)+1),
			LayoutType:    core.LayoutContent,
			ContentPoints: []string{"Content to be added"},
		}
		s.SlideOutlines = append(s.SlideOutlines[:insertAt], append([]core.SlideOutline{outline}, s.SlideOutlines[insertAt:]...)...)
	}
	if len(s.SlideOutlines) > b.maxSlides {
		// Keep the closing slide when trimming.
		last := s.SlideOutlines[len(s.SlideOutlines)-1]
		s.SlideOutlines = s.SlideOutlines[:b.maxSlides]
		if last.LayoutType == core.LayoutClosing {
			s.SlideOutlines[b.maxSlides-1] = last
		}
	}
	for i := range s.SlideOutlines {
		s.SlideOutlines[i].SlideNumber = i + 1
		if s.SlideOutlines[i].LayoutType == "" {
			s.SlideOutlines[i].LayoutType = core.LayoutContent
		}
	}
}

func requirementsText(requirements map[string]string) string {
	var b strings.Builder
	for _, k := range sortedKeys(requirements) {
		fmt.Fprintf(&b, "%s=%s;", k, requirements[k])
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
