package dto

import (
	"time"

	"basegraph.app/editorial/internal/model"
)

type PersonaSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Tagline string `json:"tagline"`
}

type PersonaListResponse struct {
	Personas []PersonaSummary `json:"personas"`
	Default  string           `json:"default"`
}

type ThreadPhaseResponse struct {
	ThreadID        string                `json:"thread_id"`
	ProjectID       string                `json:"project_id"`
	Phase           model.ThreadPhase     `json:"phase"`
	Label           string                `json:"label"`
	PreviousPhase   model.ThreadPhase     `json:"previous_phase,omitempty"`
	TurnCount       int                   `json:"turn_count"`
	PersonaOverride string                `json:"persona_override,omitempty"`
	IntensityDelta  int                   `json:"intensity_delta"`
	OpenQuestions   []string              `json:"open_questions,omitempty"`
	Evidence        []model.PhaseEvidence `json:"evidence,omitempty"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Version         int64                 `json:"version"`
}

type ProjectPhaseResponse struct {
	ProjectID string                `json:"project_id"`
	Phase     model.ProjectPhase    `json:"phase"`
	Label     string                `json:"label"`
	Pinned    bool                  `json:"pinned"`
	EnteredAt time.Time             `json:"entered_at"`
	Evidence  []model.PhaseEvidence `json:"evidence,omitempty"`
	Version   int64                 `json:"version"`
	Threads   []ThreadPhaseResponse `json:"threads"`
}

type KnowledgeResponse struct {
	ProjectID    string                `json:"project_id"`
	Version      string                `json:"version"`
	FactsVersion int64                 `json:"facts_version"`
	Facts        []model.KnowledgeFact `json:"facts"`
	Preferences  model.PreferenceMap   `json:"preferences"`
	Rendered     string                `json:"rendered"`
}

func NewThreadPhaseResponse(s model.ThreadPhaseState) ThreadPhaseResponse {
	return ThreadPhaseResponse{
		ThreadID:        s.ThreadID,
		ProjectID:       s.ProjectID,
		Phase:           s.Phase,
		Label:           s.Phase.Label(),
		PreviousPhase:   s.PreviousPhase,
		TurnCount:       s.TurnCount,
		PersonaOverride: s.PersonaOverride,
		IntensityDelta:  s.IntensityDelta,
		OpenQuestions:   s.OpenQuestions,
		Evidence:        s.Evidence,
		UpdatedAt:       s.UpdatedAt,
		Version:         s.Version,
	}
}
