package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/editorial/common/id"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/queue"
)

type EventIngestParams struct {
	Event           model.Event
	Source          string
	ExternalEventID *string
	DedupeKey       *string
}

type EventIngestResult struct {
	Event      model.Event
	DedupeKey  string
	Enqueued   bool
	Duplicated bool
}

type EventIngestService interface {
	Ingest(ctx context.Context, params EventIngestParams) (*EventIngestResult, error)
}

type eventIngestService struct {
	ids    id.Generator
	dedupe Deduper
	queue  queue.Producer
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

const defaultDedupeTTL = 24 * time.Hour

func NewEventIngestService(ids id.Generator, dedupe Deduper, queue queue.Producer, logger *slog.Logger) EventIngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventIngestService{
		ids:    ids,
		dedupe: dedupe,
		queue:  queue,
		ttl:    defaultDedupeTTL,
		now:    time.Now,
		logger: logger,
	}
}

// Ingest validates an event, assigns its id and enqueues it once per dedupe key.
func (s *eventIngestService) Ingest(ctx context.Context, params EventIngestParams) (*EventIngestResult, error) {
	ev := params.Event
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown event_type %q", ErrInvalidInput, ev.Type)
	}
	if ev.ProjectID == "" || ev.ThreadID == "" {
		return nil, fmt.Errorf("%w: project_id and thread_id are required", ErrInvalidInput)
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now().UTC()
	}

	source := params.Source
	if source == "" {
		source = "api"
	}

	dedupeKey, err := computeDedupeKey(source, ev, params.ExternalEventID, params.DedupeKey)
	if err != nil {
		return nil, err
	}

	fresh, err := s.dedupe.Claim(ctx, dedupeKey, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("claiming dedupe key: %w", err)
	}
	if !fresh {
		s.logger.InfoContext(ctx, "duplicate event deduped",
			"project_id", ev.ProjectID,
			"thread_id", ev.ThreadID,
			"dedupe_key", dedupeKey)
		return &EventIngestResult{Event: ev, DedupeKey: dedupeKey, Duplicated: true}, nil
	}

	ev.ID = s.ids.NewID()
	if err := s.queue.Enqueue(ctx, ev); err != nil {
		// Let a retried delivery through.
		if rerr := s.dedupe.Release(ctx, dedupeKey); rerr != nil {
			s.logger.WarnContext(ctx, "failed to release dedupe key", "error", rerr, "dedupe_key", dedupeKey)
		}
		return nil, fmt.Errorf("enqueueing event: %w", err)
	}

	return &EventIngestResult{
		Event:     ev,
		DedupeKey: dedupeKey,
		Enqueued:  true,
	}, nil
}

func computeDedupeKey(source string, ev model.Event, externalEventID *string, override *string) (string, error) {
	if override != nil && *override != "" {
		return *override, nil
	}

	if externalEventID != nil && *externalEventID != "" {
		return fmt.Sprintf("%s:%s:%s", source, ev.Type, *externalEventID), nil
	}

	body := struct {
		Source    string          `json:"source"`
		EventType model.EventType `json:"event_type"`
		ProjectID string          `json:"project_id"`
		ThreadID  string          `json:"thread_id"`
		Author    string          `json:"author,omitempty"`
		Text      string          `json:"text,omitempty"`
	}{
		Source:    source,
		EventType: ev.Type,
		ProjectID: ev.ProjectID,
		ThreadID:  ev.ThreadID,
		Author:    ev.Author,
		Text:      ev.Text,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal dedupe payload: %w", err)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", source, hex.EncodeToString(hash[:])), nil
}
