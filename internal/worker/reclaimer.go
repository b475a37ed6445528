package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/editorial/common/logger"
	"basegraph.app/editorial/internal/queue"
)

type RedisReclaimerConfig struct {
	Stream   string
	Group    string
	Consumer string
	// MinIdle should be at least the thread lock TTL so a slow but live
	// worker keeps its event.
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
	// MaxDeliveries dead letters an entry delivered this many times without
	// an ack. Such events usually crash the worker that reads them.
	MaxDeliveries int64
}

// RedisReclaimer takes over events left pending by a worker that died between
// reading and settling them, and runs them through the worker again.
type RedisReclaimer struct {
	client   *redis.Client
	cfg      RedisReclaimerConfig
	consumer Consumer
	handle   queue.MessageProcessor

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRedisReclaimer(client *redis.Client, cfg RedisReclaimerConfig, consumer Consumer, handle queue.MessageProcessor) *RedisReclaimer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 5
	}
	return &RedisReclaimer{
		client:    client,
		cfg:       cfg,
		consumer:  consumer,
		handle:    handle,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

type reclaimStats struct {
	claimed      int
	deadLettered int
	failed       int
}

func (r *RedisReclaimer) Run(ctx context.Context) {
	defer close(r.stoppedCh)
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "editorial.worker.reclaimer"})

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"max_deliveries", r.cfg.MaxDeliveries)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			stats, err := r.sweep(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "reclaim sweep failed", "error", err)
				continue
			}
			if stats.claimed > 0 {
				slog.InfoContext(ctx, "reclaim sweep done",
					"claimed", stats.claimed,
					"dead_lettered", stats.deadLettered,
					"failed", stats.failed)
			}
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// sweep claims every entry idle for at least MinIdle in one XCLAIM and settles
// each: too many deliveries go to the DLQ, the rest are handled again.
func (r *RedisReclaimer) sweep(ctx context.Context) (reclaimStats, error) {
	var stats reclaimStats

	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.cfg.Stream,
		Group:  r.cfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return stats, fmt.Errorf("listing pending events: %w", err)
	}
	if len(pending) == 0 {
		return stats, nil
	}

	ids := make([]string, 0, len(pending))
	deliveries := make(map[string]int64, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
		deliveries[p.ID] = p.RetryCount
	}

	// Entries another reclaimer took in the meantime are not returned.
	claimed, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return stats, fmt.Errorf("claiming pending events: %w", err)
	}

	for _, entry := range claimed {
		stats.claimed++
		switch err := r.settle(ctx, entry, deliveries[entry.ID]); {
		case errors.Is(err, errDeadLettered):
			stats.deadLettered++
		case err != nil:
			stats.failed++
			slog.ErrorContext(ctx, "reclaimed event failed", "error", err, "entry_id", entry.ID)
		}
	}
	return stats, nil
}

var errDeadLettered = errors.New("dead lettered")

func (r *RedisReclaimer) settle(ctx context.Context, entry redis.XMessage, delivered int64) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(entry.ID)})

	msg, err := queue.ParseMessage(entry)
	if err != nil {
		slog.ErrorContext(ctx, "dropping undecodable reclaimed entry", "error", err)
		return r.consumer.Ack(ctx, queue.Message{ID: entry.ID, Raw: entry})
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectID: logger.Ptr(msg.Event.ProjectID),
		ThreadID:  logger.Ptr(msg.Event.ThreadID),
	})

	if delivered >= r.cfg.MaxDeliveries {
		reason := fmt.Sprintf("delivered %d times without being settled", delivered)
		if err := r.consumer.SendDLQ(ctx, msg, reason); err != nil {
			return err
		}
		return errDeadLettered
	}

	slog.InfoContext(ctx, "handling reclaimed event", "deliveries", delivered)
	return r.handle(ctx, msg)
}
