package worker_test

import (
	"context"
	"errors"
	"sync"

	"basegraph.app/editorial/internal/engine"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/queue"
	"basegraph.app/editorial/internal/worker"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockConsumer struct {
	mu       sync.Mutex
	ReadFn   func(ctx context.Context) ([]queue.Message, error)
	acked    []string
	requeued []string
	dlq      []string
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	if m.ReadFn != nil {
		return m.ReadFn(ctx)
	}
	return nil, nil
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *mockConsumer) Requeue(_ context.Context, msg queue.Message, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued = append(m.requeued, msg.ID)
	return nil
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, msg.ID)
	return nil
}

type mockProcessor struct {
	ProcessFn func(ctx context.Context, ev model.Event) (engine.Outcome, error)
}

func (m *mockProcessor) Process(ctx context.Context, ev model.Event) (engine.Outcome, error) {
	return m.ProcessFn(ctx, ev)
}

var _ = Describe("Worker", func() {
	var (
		ctx       context.Context
		consumer  *mockConsumer
		processor *mockProcessor
		w         *worker.Worker
		msg       queue.Message
	)

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
		processor = &mockProcessor{ProcessFn: func(context.Context, model.Event) (engine.Outcome, error) {
			return engine.Outcome{}, nil
		}}
		w = worker.New(consumer, processor, worker.Config{MaxAttempts: 3})
		msg = queue.Message{
			ID:      "1-0",
			Attempt: 1,
			Event:   model.Event{ID: 9, Type: model.EventTypeCommentCreated, ProjectID: "p1", ThreadID: "t1"},
		}
	})

	It("acks a processed event", func() {
		Expect(w.HandleMessage(ctx, msg)).To(Succeed())
		Expect(consumer.acked).To(ConsistOf("1-0"))
		Expect(consumer.requeued).To(BeEmpty())
		Expect(consumer.dlq).To(BeEmpty())
	})

	It("requeues a retryable failure", func() {
		processor.ProcessFn = func(context.Context, model.Event) (engine.Outcome, error) {
			return engine.Outcome{}, engine.NewRetryableError(errors.New("model timed out"))
		}
		Expect(w.HandleMessage(ctx, msg)).NotTo(Succeed())
		Expect(consumer.requeued).To(ConsistOf("1-0"))
		Expect(consumer.acked).To(BeEmpty())
	})

	It("dead-letters a retryable failure once attempts run out", func() {
		processor.ProcessFn = func(context.Context, model.Event) (engine.Outcome, error) {
			return engine.Outcome{}, engine.NewRetryableError(errors.New("model timed out"))
		}
		msg.Attempt = 3
		Expect(w.HandleMessage(ctx, msg)).NotTo(Succeed())
		Expect(consumer.dlq).To(ConsistOf("1-0"))
		Expect(consumer.requeued).To(BeEmpty())
	})

	It("dead-letters a fatal failure immediately", func() {
		processor.ProcessFn = func(context.Context, model.Event) (engine.Outcome, error) {
			return engine.Outcome{}, engine.NewFatalError(&model.UnknownPersonaError{ID: "nobody", Source: "label"})
		}
		Expect(w.HandleMessage(ctx, msg)).NotTo(Succeed())
		Expect(consumer.dlq).To(ConsistOf("1-0"))
	})

	It("recovers from a panic and dead-letters the event", func() {
		processor.ProcessFn = func(context.Context, model.Event) (engine.Outcome, error) {
			panic("nil map")
		}
		err := w.HandleMessage(ctx, msg)
		Expect(err).To(MatchError(ContainSubstring("panic: nil map")))
		Expect(consumer.dlq).To(ConsistOf("1-0"))
	})

	It("stops the run loop on Stop", func() {
		consumer.ReadFn = func(context.Context) ([]queue.Message, error) { return nil, nil }
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()
		w.Stop()
		Eventually(done).Should(Receive(BeNil()))
	})
})
