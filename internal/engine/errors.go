package engine

import (
	"context"
	"errors"

	"basegraph.app/editorial/common/llm"
	"basegraph.app/editorial/internal/knowledge"
	"basegraph.app/editorial/internal/lock"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/store"
)

var ErrInvalidEvent = errors.New("invalid event")

// ProcessError tells the worker whether a failed event may be redelivered.
type ProcessError struct {
	Err       error
	Retryable bool
}

func (e *ProcessError) Error() string {
	return e.Err.Error()
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error) *ProcessError {
	return &ProcessError{Err: err, Retryable: true}
}

func NewFatalError(err error) *ProcessError {
	return &ProcessError{Err: err, Retryable: false}
}

// IsRetryable reports whether err, classified or not, should be redelivered.
// Unclassified errors are retryable.
func IsRetryable(err error) bool {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

// classify wraps err in a ProcessError according to the domain taxonomy.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProcessError
	if errors.As(err, &pe) {
		return err
	}

	var (
		unknown    *model.UnknownPersonaError
		missing    *model.MissingRequiredContextError
		transition *model.InvalidPhaseTransitionError
		stale      *model.StaleKnowledgeAppendError
	)
	switch {
	case errors.As(err, &unknown),
		errors.As(err, &missing),
		errors.As(err, &transition),
		errors.Is(err, knowledge.ErrNotClosingSummary),
		errors.Is(err, ErrInvalidEvent):
		return NewFatalError(err)
	case errors.As(err, &stale),
		errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, lock.ErrHeld),
		errors.Is(err, context.DeadlineExceeded):
		return NewRetryableError(err)
	case errors.Is(err, context.Canceled):
		return NewRetryableError(err)
	}
	return &ProcessError{Err: err, Retryable: llm.IsRetryable(ctx, err)}
}
