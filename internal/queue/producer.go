package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"basegraph.app/editorial/internal/model"
)

type Producer interface {
	Enqueue(ctx context.Context, ev model.Event) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, ev model.Event) error {
	values, err := eventValues(ev, 1)
	if err != nil {
		return err
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued editorial event",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"project_id", ev.ProjectID,
		"thread_id", ev.ThreadID)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
