package assembler

import (
	"context"
	"fmt"
	"strings"

	"basegraph.app/editorial/internal/knowledge"
	"basegraph.app/editorial/internal/memory"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/persona"
	"basegraph.app/editorial/internal/phase"
)

// Input is everything one bundle is built from.
type Input struct {
	ProjectID string
	ThreadID  string
	Persona   persona.Resolution
	Snapshot  model.KnowledgeSnapshot
	Project   model.ProjectPhaseState
	Thread    model.ThreadPhaseState
	Memory    memory.View
	Emotion   phase.EmotionalState
	// Task is the author's current request; Content is the text under review, if any.
	Task    string
	Content string
}

type Assembler struct {
	catalog *persona.Catalog
	rules   RulesSource
	budget  memory.Budget
}

func New(catalog *persona.Catalog, rules RulesSource, budget memory.Budget) *Assembler {
	return &Assembler{catalog: catalog, rules: rules, budget: budget}
}

// Assemble builds the bundle in the fixed section order. The persona, rules
// and knowledge sections depend only on (project, persona, intensity,
// knowledge snapshot version) and form the cacheable prefix.
func (a *Assembler) Assemble(ctx context.Context, in Input) (model.ContextBundle, error) {
	rules, err := a.rules.Rules(ctx)
	if err != nil {
		return model.ContextBundle{}, err
	}

	personaText := persona.FormatForPrompt(in.Persona.Persona, a.catalog)
	if note := intensityLine(in.Persona.IntensityDelta); note != "" {
		personaText += "\n\n" + note
	}

	knowledgeText := knowledge.Format(in.Snapshot)
	if knowledgeText == "" {
		knowledgeText = "## Known Context\n\nNothing has been established for this project yet."
	}

	openQuestions := in.Memory.OpenQuestions
	if len(openQuestions) == 0 {
		openQuestions = in.Thread.OpenQuestions
	}
	guidance := phase.Guidance(phase.GuidanceInput{
		Project:       in.Project.Phase,
		Thread:        in.Thread.Phase,
		Emotion:       in.Emotion,
		OpenQuestions: openQuestions,
		Discovery:     &in.Persona.Persona.Discovery,
	})

	history := in.Memory.History()
	if history == "" {
		history = "## Conversation\n\nThis is the start of the conversation."
	}

	task := taskSection(in)

	bundle := model.ContextBundle{
		ProjectID:       in.ProjectID,
		ThreadID:        in.ThreadID,
		PersonaID:       in.Persona.PersonaID,
		IntensityDelta:  in.Persona.IntensityDelta,
		SnapshotVersion: in.Snapshot.Version(),
		Sections: []model.Section{
			{Name: model.SectionPersona, Content: personaText, Cacheable: true},
			{Name: model.SectionRules, Content: "## Editorial Rules\n\n" + rules, Cacheable: true},
			{Name: model.SectionKnowledge, Content: knowledgeText, Cacheable: true},
			{Name: model.SectionPhaseGuidance, Content: guidance},
			{Name: model.SectionHistory, Content: history},
			{Name: model.SectionTask, Content: task},
		},
	}
	bundle.Budget = a.budget.Measure(bundle.CacheablePrefix()+guidance, history, task)
	return bundle, nil
}

func intensityLine(delta int) string {
	switch {
	case delta > 0:
		return fmt.Sprintf("**Feedback intensity:** +%d. The author asked for harsher feedback; be more ruthless and challenging than usual.", delta)
	case delta < 0:
		return fmt.Sprintf("**Feedback intensity:** %d. The author asked for gentler feedback; soften critique and lead with what works.", delta)
	}
	return ""
}

func taskSection(in Input) string {
	var sb strings.Builder
	sb.WriteString("## Current Request\n\n")
	if t := strings.TrimSpace(in.Task); t != "" {
		sb.WriteString(t)
	} else {
		sb.WriteString("Respond to the author's latest message.")
	}
	if in.Persona.IntensityNote != "" {
		fmt.Fprintf(&sb, "\n\n*Note: %s*", in.Persona.IntensityNote)
	}
	if c := strings.TrimSpace(in.Content); c != "" {
		sb.WriteString("\n\n## Content Under Review\n\n")
		sb.WriteString(c)
	}
	return sb.String()
}
