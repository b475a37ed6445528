package model

import "time"

type Role string

const (
	RoleAuthor Role = "author"
	RoleEditor Role = "editor"
)

// ConversationTurn is one message in a thread. Index is its position, starting at 0.
type ConversationTurn struct {
	Index     int       `json:"index"`
	Role      Role      `json:"role"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ExtractedFact is a subject/value pair produced by summarization.
type ExtractedFact struct {
	Subject    string     `json:"subject"`
	Value      string     `json:"value"`
	Confidence Confidence `json:"confidence"`
	SourceTurn int        `json:"source_turn"`
}

// ThreadSummary is the output of closing a thread. Final summaries of COMPLETE
// threads are the only input the knowledge store accepts.
type ThreadSummary struct {
	ThreadID             string                 `json:"thread_id"`
	ProjectID            string                 `json:"project_id"`
	ThreadPhase          ThreadPhase            `json:"thread_phase"`
	Final                bool                   `json:"final"`
	Summary              string                 `json:"summary"`
	Facts                []ExtractedFact        `json:"facts"`
	Decisions            []string               `json:"decisions"`
	OutstandingQuestions []string               `json:"outstanding_questions"`
	Conflicts            []ConflictingFactError `json:"conflicts,omitempty"`
	CoveredTurns         int                    `json:"covered_turns"`
}

// ExplicitFacts returns the durable subset of Facts.
func (s ThreadSummary) ExplicitFacts() []ExtractedFact {
	var out []ExtractedFact
	for _, f := range s.Facts {
		if f.Confidence == ConfidenceExplicit {
			out = append(out, f)
		}
	}
	return out
}

// ThreadContent is what the issue tracker knows about a thread: its turns in
// order and the labels on the thread and on the project.
type ThreadContent struct {
	ProjectID     string             `json:"project_id"`
	ThreadID      string             `json:"thread_id"`
	Title         string             `json:"title,omitempty"`
	Turns         []ConversationTurn `json:"turns"`
	ThreadLabels  []string           `json:"thread_labels"`
	ProjectLabels []string           `json:"project_labels"`
}
