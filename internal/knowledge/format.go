package knowledge

import (
	"fmt"
	"slices"
	"strings"

	"basegraph.app/editorial/internal/model"
	"gopkg.in/yaml.v3"
)

// Format renders a snapshot as the knowledge section of the prompt. Facts on
// the same subject collapse to the latest answer, with older answers listed as
// superseded. The output depends only on the snapshot.
func Format(snap model.KnowledgeSnapshot) string {
	var sections []string

	if qa := formatFacts(snap.Facts); qa != "" {
		sections = append(sections, "## Known Context (from author answers)\n\n"+qa)
	}

	prefs := snap.Preferences
	if len(prefs.Terminology) > 0 {
		keys := make([]string, 0, len(prefs.Terminology))
		for k := range prefs.Terminology {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("- Use '%s' not '%s'", prefs.Terminology[k], k))
		}
		sections = append(sections, "## Terminology Preferences\n\n"+strings.Join(lines, "\n"))
	}

	if len(prefs.Themes) > 0 {
		lines := make([]string, 0, len(prefs.Themes))
		for _, t := range prefs.Themes {
			lines = append(lines, "- "+t)
		}
		sections = append(sections, "## Central Themes\n\n"+strings.Join(lines, "\n"))
	}

	if len(prefs.Style) > 0 {
		// yaml.v3 sorts map keys, so the rendering is stable.
		b, err := yaml.Marshal(prefs.Style)
		if err == nil {
			sections = append(sections, "## Author Preferences\n\n"+strings.TrimRight(string(b), "\n"))
		}
	}

	return strings.Join(sections, "\n\n")
}

type factGroup struct {
	question string
	answers  []string
}

// formatFacts expects facts oldest first, the order every store returns.
func formatFacts(facts []model.KnowledgeFact) string {
	var groups []*factGroup
	bySubject := map[string]*factGroup{}
	for _, f := range facts {
		key := model.NormalizeKey(f.Question)
		g, ok := bySubject[key]
		if !ok {
			g = &factGroup{question: f.Question}
			bySubject[key] = g
			groups = append(groups, g)
		}
		g.answers = append(g.answers, f.Answer)
	}

	var sb strings.Builder
	for i, g := range groups {
		if i > 0 {
			sb.WriteString("\n")
		}
		current := g.answers[len(g.answers)-1]
		fmt.Fprintf(&sb, "Q: %s\nA: %s\n", g.question, current)
		for _, old := range slices.Backward(g.answers[:len(g.answers)-1]) {
			fmt.Fprintf(&sb, "   (superseded: %s)\n", old)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// MarshalPreferences renders preferences as the YAML document accepted by
// the preferences endpoint.
func MarshalPreferences(p model.PreferenceMap) ([]byte, error) {
	return yaml.Marshal(p)
}

// ParsePreferences decodes a YAML (or JSON, which YAML accepts) preference document.
func ParsePreferences(projectID string, data []byte) (model.PreferenceMap, error) {
	var p model.PreferenceMap
	if err := yaml.Unmarshal(data, &p); err != nil {
		return model.PreferenceMap{}, fmt.Errorf("parsing preferences: %w", err)
	}
	p.ProjectID = projectID
	return p, nil
}
