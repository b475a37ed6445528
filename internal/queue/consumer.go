package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/editorial/common/logger"
)

type ConsumerConfig struct {
	Stream       string
	Group        string
	Consumer     string
	DLQStream    string // fatal and exhausted events end up here
	BatchSize    int64
	Block        time.Duration
	RequeueDelay time.Duration
}

// MessageProcessor handles one decoded event entry.
type MessageProcessor func(ctx context.Context, msg Message) error

// RedisConsumer reads editorial events from a stream consumer group. Entries
// that fail are moved, never rewritten in place: the old entry is acked and a
// copy with the new attempt count is added to the event stream or the DLQ in
// the same MULTI, so an event is never lost between the two.
type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	if cfg.Stream == "" || cfg.Group == "" {
		return nil, fmt.Errorf("consumer needs a stream and a group")
	}
	if cfg.DLQStream == "" {
		cfg.DLQStream = cfg.Stream + "_dlq"
	}
	c := &RedisConsumer{client: client, cfg: cfg}

	// The group starts at "0" so a recreated group still sees queued events.
	err := client.XGroupCreateMkStream(context.Background(), cfg.Stream, cfg.Group, "0").Err() //nolint:contextcheck
	if err != nil && !redis.HasErrorPrefix(err, "BUSYGROUP") {
		return nil, fmt.Errorf("creating consumer group %s on %s: %w", cfg.Group, cfg.Stream, err)
	}
	return c, nil
}

// Read blocks for up to Block waiting for undelivered events. Entries that
// cannot be decoded are acked and dropped; pending entries of dead consumers
// are left to the reclaimer.
func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "editorial.queue.consumer"})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("xreadgroup %s: %w", c.cfg.Stream, err)
	}

	var batch []Message
	for _, s := range streams {
		batch = append(batch, c.decode(ctx, s.Messages)...)
	}
	if len(batch) > 0 {
		slog.DebugContext(ctx, "events read", "count", len(batch), "consumer", c.cfg.Consumer)
	}
	return batch, nil
}

func (c *RedisConsumer) decode(ctx context.Context, entries []redis.XMessage) []Message {
	out := make([]Message, 0, len(entries))
	for _, entry := range entries {
		msg, err := ParseMessage(entry)
		if err != nil {
			slog.ErrorContext(ctx, "dropping undecodable stream entry",
				"error", err,
				"entry_id", entry.ID,
				"stream", c.cfg.Stream)
			if ackErr := c.Ack(ctx, Message{ID: entry.ID, Raw: entry}); ackErr != nil {
				slog.WarnContext(ctx, "ack of undecodable entry failed", "error", ackErr)
			}
			continue
		}
		out = append(out, msg)
	}
	return out
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack %s on %s: %w", msg.ID, c.cfg.Stream, err)
	}
	return nil
}

// Requeue puts the event back at the tail of the stream with its attempt
// count raised by one, after RequeueDelay.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	if c.cfg.RequeueDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RequeueDelay):
		}
	}

	attempt := max(msg.Attempt, 1) + 1
	if err := c.move(ctx, msg, c.cfg.Stream, attempt, "last_error", errMsg); err != nil {
		return fmt.Errorf("requeueing event: %w", err)
	}
	slog.InfoContext(ctx, "event requeued", "next_attempt", attempt, "reason", errMsg)
	return nil
}

// SendDLQ parks the event in the dead letter stream with the final error.
func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.move(ctx, msg, c.cfg.DLQStream, msg.Attempt, "error", errMsg); err != nil {
		return fmt.Errorf("dead lettering event: %w", err)
	}
	slog.ErrorContext(ctx, "event dead lettered", "final_error", errMsg, "dlq_stream", c.cfg.DLQStream)
	return nil
}

func (c *RedisConsumer) move(ctx context.Context, msg Message, target string, attempt int, errKey, errMsg string) error {
	values, err := messageValues(msg, attempt)
	if err != nil {
		return err
	}
	if errMsg != "" {
		values[errKey] = errMsg
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID)
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: target, Values: values})
		return nil
	})
	if err != nil {
		return fmt.Errorf("moving %s to %s: %w", msg.ID, target, err)
	}
	return nil
}
