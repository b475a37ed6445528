package model

import (
	"fmt"
	"strings"
)

// UnknownPersonaError is returned when any source names a persona outside the catalog.
type UnknownPersonaError struct {
	ID     string
	Source string
	Valid  []string
}

func (e *UnknownPersonaError) Error() string {
	return fmt.Sprintf("unknown persona %q from %s (valid: %s)", e.ID, e.Source, strings.Join(e.Valid, ", "))
}

// MissingRequiredContextError is returned when required static context cannot be loaded.
type MissingRequiredContextError struct {
	Name string
	Err  error
}

func (e *MissingRequiredContextError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("missing required context %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("missing required context %q", e.Name)
}

func (e *MissingRequiredContextError) Unwrap() error {
	return e.Err
}

// ConflictingFactError flags a newly stated fact that contradicts an established one.
// It is an annotation: both statements are kept.
type ConflictingFactError struct {
	Subject        string `json:"subject"`
	Established    string `json:"established"`
	EstablishedRef string `json:"established_ref,omitempty"`
	Incoming       string `json:"incoming"`
	IncomingRef    string `json:"incoming_ref,omitempty"`
}

func (e *ConflictingFactError) Error() string {
	return fmt.Sprintf("conflicting fact for %q: established %q, now %q", e.Subject, e.Established, e.Incoming)
}

// StaleKnowledgeAppendError is returned when the facts version moved since the
// caller's snapshot.
type StaleKnowledgeAppendError struct {
	ProjectID string
	Expected  int64
	Actual    int64
}

func (e *StaleKnowledgeAppendError) Error() string {
	return fmt.Sprintf("stale knowledge append for project %s: expected version %d, current %d", e.ProjectID, e.Expected, e.Actual)
}

// InvalidPhaseTransitionError is returned for any transition out of a terminal thread.
type InvalidPhaseTransitionError struct {
	ThreadID  string
	From      ThreadPhase
	Attempted string
}

func (e *InvalidPhaseTransitionError) Error() string {
	return fmt.Sprintf("invalid phase transition for thread %s: %s is terminal (attempted %s)", e.ThreadID, e.From, e.Attempted)
}
