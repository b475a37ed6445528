package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// LogFields are attached to a context and added to every record logged with
// it, so the ids of the event being processed reach every layer.
type LogFields struct {
	ProjectID *string
	ThreadID  *string
	EventID   *int64 // snowflake id assigned at ingest
	MessageID *string
	EventType *string
	PersonaID *string
	Component string // e.g. "editorial.engine.processor"
}

// WithLogFields returns ctx with fields merged over the ones already present.
// Nil and empty values leave the existing value in place.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := GetLogFields(ctx)
	merged.ProjectID = pick(fields.ProjectID, merged.ProjectID)
	merged.ThreadID = pick(fields.ThreadID, merged.ThreadID)
	merged.EventID = pick(fields.EventID, merged.EventID)
	merged.MessageID = pick(fields.MessageID, merged.MessageID)
	merged.EventType = pick(fields.EventType, merged.EventType)
	merged.PersonaID = pick(fields.PersonaID, merged.PersonaID)
	if fields.Component != "" {
		merged.Component = fields.Component
	}
	return context.WithValue(ctx, contextKey{}, merged)
}

func GetLogFields(ctx context.Context) LogFields {
	fields, _ := ctx.Value(contextKey{}).(LogFields)
	return fields
}

func pick[T any](next, prev *T) *T {
	if next != nil {
		return next
	}
	return prev
}

// attrs renders the set fields in a stable order.
func (f LogFields) attrs() []slog.Attr {
	var out []slog.Attr
	if f.ProjectID != nil {
		out = append(out, slog.String("project_id", *f.ProjectID))
	}
	if f.ThreadID != nil {
		out = append(out, slog.String("thread_id", *f.ThreadID))
	}
	if f.EventID != nil {
		out = append(out, slog.Int64("event_id", *f.EventID))
	}
	if f.MessageID != nil {
		out = append(out, slog.String("message_id", *f.MessageID))
	}
	if f.EventType != nil {
		out = append(out, slog.String("event_type", *f.EventType))
	}
	if f.PersonaID != nil {
		out = append(out, slog.String("persona_id", *f.PersonaID))
	}
	if f.Component != "" {
		out = append(out, slog.String("component", f.Component))
	}
	return out
}

// Ptr returns a pointer to v, for inline LogFields literals.
func Ptr[T any](v T) *T {
	return &v
}
