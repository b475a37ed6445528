package model

import "time"

type EventType string

const (
	EventTypeFragmentSubmitted EventType = "fragment_submitted"
	EventTypeCommentCreated    EventType = "comment_created"
	EventTypeThreadOpened      EventType = "thread_opened"
	EventTypeThreadClosed      EventType = "thread_closed"
)

func (t EventType) Valid() bool {
	switch t {
	case EventTypeFragmentSubmitted, EventTypeCommentCreated, EventTypeThreadOpened, EventTypeThreadClosed:
		return true
	}
	return false
}

// Event is one inbound unit of work for a single thread.
type Event struct {
	ID        int64     `json:"id"`
	Type      EventType `json:"type"`
	ProjectID string    `json:"project_id"`
	ThreadID  string    `json:"thread_id"`
	Author    string    `json:"author,omitempty"`
	Text      string    `json:"text,omitempty"`

	// Set for fragment submissions once the fragment landed in project content.
	FragmentIncorporated bool `json:"fragment_incorporated,omitempty"`
	WordCount            int  `json:"word_count,omitempty"`
	ChapterCount         int  `json:"chapter_count,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}
