package model

import "strings"

type SectionName string

const (
	SectionPersona       SectionName = "persona"
	SectionRules         SectionName = "rules"
	SectionKnowledge     SectionName = "knowledge"
	SectionPhaseGuidance SectionName = "phase_guidance"
	SectionHistory       SectionName = "history"
	SectionTask          SectionName = "task"
)

// SectionOrder is the fixed layout of every bundle.
var SectionOrder = []SectionName{
	SectionPersona,
	SectionRules,
	SectionKnowledge,
	SectionPhaseGuidance,
	SectionHistory,
	SectionTask,
}

const sectionSeparator = "\n\n---\n\n"

type Section struct {
	Name      SectionName `json:"name"`
	Content   string      `json:"content"`
	Cacheable bool        `json:"cacheable"`
}

// TokenBudget reports estimated token usage against the configured window.
type TokenBudget struct {
	Limit              int  `json:"limit"`
	System             int  `json:"system"`
	Conversation       int  `json:"conversation"`
	Content            int  `json:"content"`
	Used               int  `json:"used"`
	NeedsSummarization bool `json:"needs_summarization"`
}

// ContextBundle is the prompt material for one LLM call. It is rebuilt per call.
type ContextBundle struct {
	ProjectID       string      `json:"project_id"`
	ThreadID        string      `json:"thread_id"`
	PersonaID       string      `json:"persona_id"`
	IntensityDelta  int         `json:"intensity_delta"`
	SnapshotVersion string      `json:"snapshot_version"`
	Sections        []Section   `json:"sections"`
	Budget          TokenBudget `json:"budget"`
}

// CacheablePrefix concatenates the cacheable sections in order.
func (b ContextBundle) CacheablePrefix() string {
	parts := make([]string, 0, 3)
	for _, s := range b.Sections {
		if !s.Cacheable {
			break
		}
		parts = append(parts, s.Content)
	}
	return strings.Join(parts, sectionSeparator)
}

// Volatile concatenates everything after the cacheable prefix.
func (b ContextBundle) Volatile() string {
	var parts []string
	for _, s := range b.Sections {
		if s.Cacheable {
			continue
		}
		parts = append(parts, s.Content)
	}
	return strings.Join(parts, sectionSeparator)
}

// Render returns the full prompt text.
func (b ContextBundle) Render() string {
	prefix, rest := b.CacheablePrefix(), b.Volatile()
	switch {
	case prefix == "":
		return rest
	case rest == "":
		return prefix
	}
	return prefix + sectionSeparator + rest
}

func (b ContextBundle) Section(name SectionName) (Section, bool) {
	for _, s := range b.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}
