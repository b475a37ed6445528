package queue

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"basegraph.app/editorial/internal/model"
)

// Message is one editorial event read from the stream.
type Message struct {
	ID      string
	Event   model.Event
	Attempt int
	TraceID string
	Raw     redis.XMessage
}

// ParseMessage decodes a stream entry. The event travels as a JSON payload;
// event_type, project_id and thread_id are duplicated as plain fields so the
// stream stays readable from redis-cli.
func ParseMessage(msg redis.XMessage) (Message, error) {
	payload, err := parseString(msg.Values, "payload")
	if err != nil {
		return Message{}, err
	}

	var ev model.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Message{}, fmt.Errorf("decoding payload: %w", err)
	}
	if !ev.Type.Valid() {
		return Message{}, fmt.Errorf("unknown event_type %q", ev.Type)
	}
	if ev.ProjectID == "" || ev.ThreadID == "" {
		return Message{}, fmt.Errorf("missing project_id or thread_id")
	}

	attempt, err := parseOptionalInt(msg.Values, "attempt")
	if err != nil {
		return Message{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	traceID, err := parseOptionalString(msg.Values, "trace_id")
	if err != nil {
		return Message{}, err
	}
	if traceID == "" {
		traceID = ev.TraceID
	}

	return Message{
		ID:      msg.ID,
		Event:   ev,
		Attempt: attempt,
		TraceID: traceID,
		Raw:     msg,
	}, nil
}

func eventValues(ev model.Event, attempt int) (map[string]any, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}
	values := map[string]any{
		"event_id":   ev.ID,
		"event_type": string(ev.Type),
		"project_id": ev.ProjectID,
		"thread_id":  ev.ThreadID,
		"payload":    string(payload),
		"attempt":    attempt,
	}
	if ev.TraceID != "" {
		values["trace_id"] = ev.TraceID
	}
	return values, nil
}

func messageValues(msg Message, attempt int) (map[string]any, error) {
	ev := msg.Event
	if ev.TraceID == "" {
		ev.TraceID = msg.TraceID
	}
	return eventValues(ev, attempt)
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(raw), nil
}
