package service_test

import (
	"context"

	"basegraph.app/editorial/internal/model"
)

type mockProducer struct {
	enqueueFn func(ctx context.Context, ev model.Event) error
	enqueued  []model.Event
}

func (m *mockProducer) Enqueue(ctx context.Context, ev model.Event) error {
	if m.enqueueFn != nil {
		if err := m.enqueueFn(ctx, ev); err != nil {
			return err
		}
	}
	m.enqueued = append(m.enqueued, ev)
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}

type seqIDs struct {
	next int64
}

func (s *seqIDs) NewID() int64 {
	s.next++
	return s.next
}
