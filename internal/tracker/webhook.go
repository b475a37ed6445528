package tracker

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"basegraph.app/editorial/internal/model"
)

const fragmentCommand = "/fragment"

var (
	ErrInvalidToken = errors.New("invalid webhook token")
	// ErrIgnored marks hooks that are valid but carry no editorial event.
	ErrIgnored = errors.New("webhook ignored")
)

// WebhookParser turns GitLab issue and note hooks into engine events.
type WebhookParser struct {
	secret      string
	botUsername string
	now         func() time.Time
}

func NewWebhookParser(secret, botUsername string) *WebhookParser {
	return &WebhookParser{secret: secret, botUsername: botUsername, now: time.Now}
}

// VerifyToken checks the X-Gitlab-Token header. An empty secret accepts any token.
func (p *WebhookParser) VerifyToken(token string) error {
	if p.secret == "" {
		return nil
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(p.secret)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

type webhookPayload struct {
	ObjectKind string `json:"object_kind"`
	User       struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Project struct {
		ID                int64  `json:"id"`
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`
	ObjectAttributes struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		Note         string `json:"note"`
		NoteableType string `json:"noteable_type"`
		Action       string `json:"action"`
		System       bool   `json:"system"`
		IID          int64  `json:"iid"`
	} `json:"object_attributes"`
	Issue struct {
		IID int64 `json:"iid"`
	} `json:"issue"`
}

// Parse maps a hook body to an event. eventHeader is the X-Gitlab-Event
// header; object_kind is used when it is missing. Hooks that carry nothing
// to process return ErrIgnored.
func (p *WebhookParser) Parse(eventHeader string, body []byte) (model.Event, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.Event{}, fmt.Errorf("decoding gitlab webhook: %w", err)
	}

	kind := hookKind(eventHeader, payload.ObjectKind)
	if kind == "" {
		return model.Event{}, fmt.Errorf("%w: unsupported gitlab event header=%q object_kind=%q",
			ErrIgnored, eventHeader, payload.ObjectKind)
	}

	projectPath := payload.Project.PathWithNamespace
	if projectPath == "" {
		return model.Event{}, fmt.Errorf("gitlab webhook has no project path")
	}

	ev := model.Event{
		ProjectID:  projectPath,
		Author:     payload.User.Username,
		OccurredAt: p.now().UTC(),
	}

	switch kind {
	case "issue":
		iid := payload.ObjectAttributes.IID
		if iid == 0 {
			return model.Event{}, fmt.Errorf("no issue IID found in payload")
		}
		ev.ThreadID = ThreadID(projectPath, iid)
		switch payload.ObjectAttributes.Action {
		case "open":
			ev.Type = model.EventTypeThreadOpened
			ev.Text = payload.ObjectAttributes.Description
		case "close":
			ev.Type = model.EventTypeThreadClosed
		default:
			return model.Event{}, fmt.Errorf("%w: issue action %q", ErrIgnored, payload.ObjectAttributes.Action)
		}

	case "note":
		if payload.ObjectAttributes.NoteableType != "Issue" {
			return model.Event{}, fmt.Errorf("%w: note on %q", ErrIgnored, payload.ObjectAttributes.NoteableType)
		}
		if payload.ObjectAttributes.System {
			return model.Event{}, fmt.Errorf("%w: system note", ErrIgnored)
		}
		if p.isBot(payload.User.Username) {
			return model.Event{}, fmt.Errorf("%w: note by %s", ErrIgnored, payload.User.Username)
		}
		iid := payload.Issue.IID
		if iid == 0 {
			return model.Event{}, fmt.Errorf("no issue IID found in payload")
		}
		ev.ThreadID = ThreadID(projectPath, iid)
		ev.Type = model.EventTypeCommentCreated
		ev.Text = payload.ObjectAttributes.Note

		if text, ok := fragmentBody(ev.Text); ok {
			ev.Type = model.EventTypeFragmentSubmitted
			ev.Text = text
			ev.FragmentIncorporated = true
		}
	}

	return ev, nil
}

func (p *WebhookParser) isBot(username string) bool {
	return p.botUsername != "" && strings.EqualFold(username, p.botUsername)
}

func hookKind(headerEventType, objectKind string) string {
	switch headerEventType {
	case "Issue Hook":
		return "issue"
	case "Note Hook":
		return "note"
	}

	switch objectKind {
	case "issue", "note":
		return objectKind
	}
	return ""
}

// fragmentBody reports whether a note submits a fragment: its first line is
// "/fragment". The rest of the note is the fragment text.
func fragmentBody(note string) (string, bool) {
	trimmed := strings.TrimSpace(note)
	first, rest, _ := strings.Cut(trimmed, "\n")
	if !strings.EqualFold(strings.TrimSpace(first), fragmentCommand) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
