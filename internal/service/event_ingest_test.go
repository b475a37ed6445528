package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/service"
)

var _ = Describe("EventIngestService", func() {
	var (
		producer *mockProducer
		svc      service.EventIngestService
		ctx      context.Context
		ev       model.Event
	)

	BeforeEach(func() {
		ctx = context.Background()
		producer = &mockProducer{}
		svc = service.NewEventIngestService(&seqIDs{next: 100}, service.NewInMemoryDeduper(), producer, nil)
		ev = model.Event{
			Type:      model.EventTypeCommentCreated,
			ProjectID: "group/novel",
			ThreadID:  "group/novel#3",
			Author:    "alice",
			Text:      "Just review it please",
		}
	})

	It("assigns an id and a timestamp and enqueues the event", func() {
		result, err := svc.Ingest(ctx, service.EventIngestParams{Event: ev})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Enqueued).To(BeTrue())
		Expect(result.Duplicated).To(BeFalse())
		Expect(result.Event.ID).To(Equal(int64(101)))
		Expect(result.Event.OccurredAt).NotTo(BeZero())
		Expect(result.DedupeKey).To(HavePrefix("api:"))

		Expect(producer.enqueued).To(HaveLen(1))
		Expect(producer.enqueued[0].ID).To(Equal(int64(101)))
	})

	It("keeps a caller-supplied timestamp", func() {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		ev.OccurredAt = at
		result, err := svc.Ingest(ctx, service.EventIngestParams{Event: ev})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Event.OccurredAt).To(Equal(at))
	})

	It("dedupes a replayed delivery", func() {
		_, err := svc.Ingest(ctx, service.EventIngestParams{Event: ev})
		Expect(err).NotTo(HaveOccurred())

		result, err := svc.Ingest(ctx, service.EventIngestParams{Event: ev})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Duplicated).To(BeTrue())
		Expect(result.Enqueued).To(BeFalse())
		Expect(producer.enqueued).To(HaveLen(1))
	})

	It("keys on the external event id when present", func() {
		extID := "note-77"
		result, err := svc.Ingest(ctx, service.EventIngestParams{Event: ev, Source: "gitlab", ExternalEventID: &extID})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.DedupeKey).To(Equal("gitlab:comment_created:note-77"))
	})

	It("releases the dedupe key when enqueueing fails", func() {
		producer.enqueueFn = func(ctx context.Context, ev model.Event) error {
			return errors.New("redis down")
		}
		_, err := svc.Ingest(ctx, service.EventIngestParams{Event: ev})
		Expect(err).To(MatchError(ContainSubstring("enqueueing event")))

		producer.enqueueFn = nil
		result, err := svc.Ingest(ctx, service.EventIngestParams{Event: ev})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Enqueued).To(BeTrue())
	})

	DescribeTable("rejects invalid events",
		func(mutate func(*model.Event)) {
			mutate(&ev)
			_, err := svc.Ingest(ctx, service.EventIngestParams{Event: ev})
			Expect(errors.Is(err, service.ErrInvalidInput)).To(BeTrue())
			Expect(producer.enqueued).To(BeEmpty())
		},
		Entry("unknown type", func(e *model.Event) { e.Type = "issue_created" }),
		Entry("missing project", func(e *model.Event) { e.ProjectID = "" }),
		Entry("missing thread", func(e *model.Event) { e.ThreadID = "" }),
	)
})
