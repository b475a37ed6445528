package persona

import (
	"fmt"
	"strings"

	"basegraph.app/editorial/internal/model"
)

var traitPoles = map[string][2]string{
	model.TraitDirectness:      {"Diplomatic", "Blunt and direct"},
	model.TraitRuthlessness:    {"Preserve content", "Cut ruthlessly"},
	model.TraitVoiceProtection: {"Polish toward standard", "Fiercely protect author's quirks"},
	model.TraitStructureFocus:  {"Let it flow organically", "Demand clear structure and arcs"},
	model.TraitMarketAwareness: {"Art for art's sake", "Commercially aware"},
	model.TraitPraiseFrequency: {"Focus on critique", "Celebrate what works"},
	model.TraitFormality:       {"Casual, profane okay", "Academic, professional"},
	model.TraitChallengeLevel:  {"Gentle suggestions", "Ask hard questions"},
	model.TraitSpecificity:     {"General direction", "Line-level precision"},
}

const maxSampleFeedback = 2

// TraitDescription renders one trait value: the low pole at 3 or below, the
// high pole at 7 or above, a balance of both in between.
func TraitDescription(trait string, value int) string {
	poles := traitPoles[trait]
	switch {
	case value <= 3:
		return poles[0]
	case value >= 7:
		return poles[1]
	}
	return fmt.Sprintf("Balance of %s and %s", strings.ToLower(poles[0]), strings.ToLower(poles[1]))
}

func traitTitle(trait string) string {
	words := strings.Split(trait, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// FormatForPrompt renders the persona section of the prompt. The output depends
// only on the profile it is given and the catalog, so it is safe to cache.
func FormatForPrompt(p model.PersonaProfile, catalog *Catalog) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Editor: %s\n", p.Name)
	fmt.Fprintf(&sb, "*%s*\n\n", p.Tagline)
	if p.Description != "" {
		sb.WriteString(strings.TrimSpace(p.Description))
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Personality Traits\n\n")
	for _, name := range model.TraitNames() {
		v, _ := p.Traits.Get(name)
		fmt.Fprintf(&sb, "- **%s** (%d/10): %s\n", traitTitle(name), v, TraitDescription(name, v))
	}
	sb.WriteString("\n")

	if len(p.Rules.Always) > 0 || len(p.Rules.Never) > 0 {
		sb.WriteString("## Editorial Rules\n\n")
		writeList(&sb, "**Always:**", p.Rules.Always, "- %s\n")
		writeList(&sb, "**Never:**", p.Rules.Never, "- %s\n")
	}

	sb.WriteString("## Voice & Tone\n\n")
	fmt.Fprintf(&sb, "**Tone:** %s\n\n", p.Voice.Tone)
	writeList(&sb, "**Characteristic phrases:**", p.Voice.Phrases, "- \"%s\"\n")
	writeList(&sb, "**Avoid saying:**", p.Voice.Avoids, "- \"%s\"\n")

	if len(p.SampleFeedback) > 0 {
		sb.WriteString("## Example Feedback (for reference)\n\n")
		for i, fb := range p.SampleFeedback[:min(len(p.SampleFeedback), maxSampleFeedback)] {
			fmt.Fprintf(&sb, "*Example %d:* \"%s\"\n\n", i+1, fb)
		}
	}

	if catalog != nil {
		var colleagues []model.PersonaProfile
		for _, other := range catalog.All() {
			if other.ID != p.ID {
				colleagues = append(colleagues, other)
			}
		}
		if len(colleagues) > 0 {
			sb.WriteString("## Your Colleagues\n\n")
			sb.WriteString("Other editors the author can call on. Suggest one when their strengths fit better.\n\n")
			for _, c := range colleagues {
				fmt.Fprintf(&sb, "- **%s** (`%s`): %s\n", c.Name, c.ID, c.Tagline)
			}
			sb.WriteString("\n")
		}
	}

	fmt.Fprintf(&sb, "You ARE %s. Never break character.", p.Name)
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string, format string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(title)
	sb.WriteString("\n")
	for _, item := range items {
		fmt.Fprintf(sb, format, item)
	}
	sb.WriteString("\n")
}

// FormatList renders the reply to "list personas".
func FormatList(catalog *Catalog, active string) string {
	var sb strings.Builder
	sb.WriteString("## Available Personas\n\n")
	for _, p := range catalog.All() {
		marker := ""
		if p.ID == active {
			marker = " (active)"
		}
		fmt.Fprintf(&sb, "- **%s** (`%s`)%s: %s\n", p.Name, p.ID, marker, p.Tagline)
	}
	sb.WriteString("\n**Usage:**\n")
	sb.WriteString("- `use <id>` or `switch to <id>`: switch editors for the rest of this thread\n")
	sb.WriteString("- `as <id>: <request>`: ask one editor for a single reply\n")
	sb.WriteString("- Add the label `persona:<id>` to set the editor for a thread\n")
	sb.WriteString("- `be harsher`, `be gentler`, `reset intensity`: adjust feedback intensity\n")
	return sb.String()
}
