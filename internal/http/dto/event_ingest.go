package dto

import "time"

type IngestEventRequest struct {
	EventType            string     `json:"event_type" binding:"required"`
	ProjectID            string     `json:"project_id" binding:"required"`
	ThreadID             string     `json:"thread_id" binding:"required"`
	Author               string     `json:"author,omitempty"`
	Text                 string     `json:"text,omitempty"`
	FragmentIncorporated bool       `json:"fragment_incorporated,omitempty"`
	WordCount            int        `json:"word_count,omitempty"`
	ChapterCount         int        `json:"chapter_count,omitempty"`
	OccurredAt           *time.Time `json:"occurred_at,omitempty"`

	Source          string  `json:"source,omitempty"`
	ExternalEventID *string `json:"external_event_id,omitempty"`
	DedupeKey       *string `json:"dedupe_key,omitempty"`
}

type IngestEventResponse struct {
	EventID    int64  `json:"event_id,omitempty"`
	DedupeKey  string `json:"dedupe_key"`
	Enqueued   bool   `json:"enqueued"`
	Duplicated bool   `json:"duplicated"`
}
