package model

import (
	"fmt"
	"strings"
	"time"
)

type Confidence string

const (
	ConfidenceExplicit Confidence = "explicit"
	ConfidenceInferred Confidence = "inferred"
)

func (c Confidence) Valid() bool {
	return c == ConfidenceExplicit || c == ConfidenceInferred
}

// KnowledgeFact is an append-only record of something the author established.
type KnowledgeFact struct {
	ID             int64      `json:"id"`
	ProjectID      string     `json:"project_id"`
	Question       string     `json:"question"`
	Answer         string     `json:"answer"`
	SourceThreadID string     `json:"source_thread_id"`
	ExtractedAt    time.Time  `json:"extracted_at"`
	Confidence     Confidence `json:"confidence"`
}

// PreferenceMap is the per-project preference document. It is replaced whole.
type PreferenceMap struct {
	ProjectID      string            `json:"project_id" yaml:"-"`
	Version        int64             `json:"version" yaml:"-"`
	Terminology    map[string]string `json:"terminology,omitempty" yaml:"terminology,omitempty"`
	Themes         []string          `json:"themes,omitempty" yaml:"themes,omitempty"`
	Style          map[string]string `json:"style,omitempty" yaml:"style,omitempty"`
	DefaultPersona string            `json:"default_persona,omitempty" yaml:"default_persona,omitempty"`
}

// KnowledgeSnapshot is everything the assembler knows about a project at one
// facts version and one preferences version.
type KnowledgeSnapshot struct {
	ProjectID    string          `json:"project_id"`
	Facts        []KnowledgeFact `json:"facts"`
	FactsVersion int64           `json:"facts_version"`
	Preferences  PreferenceMap   `json:"preferences"`
}

// Version renders the snapshot version as "f<facts>.p<preferences>".
func (s KnowledgeSnapshot) Version() string {
	return fmt.Sprintf("f%d.p%d", s.FactsVersion, s.Preferences.Version)
}

// NormalizeKey folds case, whitespace and trailing punctuation so that fact
// subjects and values written slightly differently compare equal.
func NormalizeKey(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, "?.!:")
}
