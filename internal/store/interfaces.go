package store

import (
	"context"
	"errors"

	"basegraph.app/editorial/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned by compare-and-swap writes when the stored
// version no longer matches the expected one.
var ErrVersionConflict = errors.New("version conflict")

// KnowledgeStore holds the append-only fact log of each project.
type KnowledgeStore interface {
	// List returns every fact of the project, oldest first, and the facts
	// version they belong to. An unknown project has version 0 and no facts.
	List(ctx context.Context, projectID string) ([]model.KnowledgeFact, int64, error)
	// Append adds facts if the facts version still equals expectedVersion and
	// returns the new version. A moved version yields *model.StaleKnowledgeAppendError.
	Append(ctx context.Context, projectID string, expectedVersion int64, facts []model.KnowledgeFact) (int64, error)
}

// PreferenceStore holds one versioned preference document per project.
type PreferenceStore interface {
	// Get returns the project's preferences, or an empty map at version 0.
	Get(ctx context.Context, projectID string) (model.PreferenceMap, error)
	Replace(ctx context.Context, prefs model.PreferenceMap, expectedVersion int64) (model.PreferenceMap, error)
}

// ProjectStateStore holds the current phase of each project.
type ProjectStateStore interface {
	Get(ctx context.Context, projectID string) (*model.ProjectPhaseState, error)
	// Save writes state if the stored version equals expectedVersion (0 to
	// create) and returns it with the incremented version.
	Save(ctx context.Context, state model.ProjectPhaseState, expectedVersion int64) (model.ProjectPhaseState, error)
}

// ThreadStateStore holds the current phase of each thread.
type ThreadStateStore interface {
	Get(ctx context.Context, threadID string) (*model.ThreadPhaseState, error)
	Save(ctx context.Context, state model.ThreadPhaseState, expectedVersion int64) (model.ThreadPhaseState, error)
	ListByProject(ctx context.Context, projectID string) ([]model.ThreadPhaseState, error)
}

// Provider exposes the stores bound to one connection or transaction.
type Provider interface {
	Knowledge() KnowledgeStore
	Preferences() PreferenceStore
	Projects() ProjectStateStore
	Threads() ThreadStateStore
}

// TxRunner runs functions within a transaction. Either every write made
// through the provider lands or none does.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores Provider) error) error
}
