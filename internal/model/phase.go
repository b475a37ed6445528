package model

import (
	"strings"
	"time"
)

// ProjectPhase is the macro lifecycle of a writing project. The declaration
// order is the forward order.
type ProjectPhase string

const (
	ProjectPhaseNew       ProjectPhase = "new"
	ProjectPhaseDrafting  ProjectPhase = "drafting"
	ProjectPhaseRevising  ProjectPhase = "revising"
	ProjectPhasePolishing ProjectPhase = "polishing"
	ProjectPhaseComplete  ProjectPhase = "complete"
)

var projectPhaseOrder = []ProjectPhase{
	ProjectPhaseNew,
	ProjectPhaseDrafting,
	ProjectPhaseRevising,
	ProjectPhasePolishing,
	ProjectPhaseComplete,
}

// ProjectPhases lists every project phase in forward order.
func ProjectPhases() []ProjectPhase {
	return append([]ProjectPhase(nil), projectPhaseOrder...)
}

// Rank is the position in the forward order, or -1 for an unknown phase.
func (p ProjectPhase) Rank() int {
	for i, candidate := range projectPhaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

func (p ProjectPhase) Valid() bool {
	return p.Rank() >= 0
}

// Label is the tracker label for the phase, e.g. "book:drafting".
func (p ProjectPhase) Label() string {
	return ProjectLabelPrefix + string(p)
}

// ParseProjectPhase accepts "revising", "REVISING" or "book:revising".
func ParseProjectPhase(s string) (ProjectPhase, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, ProjectLabelPrefix)
	p := ProjectPhase(s)
	return p, p.Valid()
}

// ThreadPhase is the micro lifecycle of a single feedback thread.
type ThreadPhase string

const (
	ThreadPhaseDiscovery ThreadPhase = "discovery"
	ThreadPhaseFeedback  ThreadPhase = "feedback"
	ThreadPhaseRevision  ThreadPhase = "revision"
	ThreadPhaseHold      ThreadPhase = "hold"
	ThreadPhaseComplete  ThreadPhase = "complete"
)

const (
	ThreadLabelPrefix  = "phase:"
	ProjectLabelPrefix = "book:"
)

func (p ThreadPhase) Valid() bool {
	switch p {
	case ThreadPhaseDiscovery, ThreadPhaseFeedback, ThreadPhaseRevision, ThreadPhaseHold, ThreadPhaseComplete:
		return true
	}
	return false
}

func (p ThreadPhase) Terminal() bool {
	return p == ThreadPhaseComplete
}

// Label is the tracker label for the phase, e.g. "phase:feedback".
func (p ThreadPhase) Label() string {
	return ThreadLabelPrefix + string(p)
}

// ThreadPhases lists every thread phase.
func ThreadPhases() []ThreadPhase {
	return []ThreadPhase{ThreadPhaseDiscovery, ThreadPhaseFeedback, ThreadPhaseRevision, ThreadPhaseHold, ThreadPhaseComplete}
}

// PhaseEvidence is one audit entry: a signal the classifier saw and what it did with it.
type PhaseEvidence struct {
	Signal  Signal    `json:"signal"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Applied bool      `json:"applied"`
	Note    string    `json:"note,omitempty"`
	At      time.Time `json:"at"`
}

type ProjectPhaseState struct {
	ProjectID string          `json:"project_id"`
	Phase     ProjectPhase    `json:"phase"`
	EnteredAt time.Time       `json:"entered_at"`
	Evidence  []PhaseEvidence `json:"evidence"`
	Pinned    bool            `json:"pinned"`
	Version   int64           `json:"version"`
}

// Valid reports whether a loaded state can be trusted as a classification base.
func (s ProjectPhaseState) Valid() bool {
	return s.ProjectID != "" && s.Phase.Valid()
}

type ThreadPhaseState struct {
	ThreadID        string          `json:"thread_id"`
	ProjectID       string          `json:"project_id"`
	Phase           ThreadPhase     `json:"phase"`
	PreviousPhase   ThreadPhase     `json:"previous_phase,omitempty"`
	TurnCount       int             `json:"turn_count"`
	PersonaOverride string          `json:"persona_override,omitempty"`
	IntensityDelta  int             `json:"intensity_delta"`
	OpenQuestions   []string        `json:"open_questions,omitempty"`
	Evidence        []PhaseEvidence `json:"evidence"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int64           `json:"version"`
}

func (s ThreadPhaseState) Valid() bool {
	return s.ThreadID != "" && s.Phase.Valid()
}
