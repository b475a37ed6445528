package worker

import (
	"context"

	"basegraph.app/editorial/internal/engine"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// EventProcessor abstracts the editorial engine for testability.
type EventProcessor interface {
	Process(ctx context.Context, ev model.Event) (engine.Outcome, error)
}
