package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("WithLogFields", func() {
	It("keeps earlier values that the newer fields leave unset", func() {
		ctx := WithLogFields(context.Background(), LogFields{
			ProjectID: Ptr("acme/novel"),
			Component: "editorial.worker",
		})
		ctx = WithLogFields(ctx, LogFields{ThreadID: Ptr("acme/novel#3")})

		f := GetLogFields(ctx)
		Expect(*f.ProjectID).To(Equal("acme/novel"))
		Expect(*f.ThreadID).To(Equal("acme/novel#3"))
		Expect(f.Component).To(Equal("editorial.worker"))
	})

	It("lets newer values win", func() {
		ctx := WithLogFields(context.Background(), LogFields{PersonaID: Ptr("sage"), Component: "a"})
		ctx = WithLogFields(ctx, LogFields{PersonaID: Ptr("margot"), Component: "b"})

		f := GetLogFields(ctx)
		Expect(*f.PersonaID).To(Equal("margot"))
		Expect(f.Component).To(Equal("b"))
	})

	It("returns empty fields for a bare context", func() {
		Expect(GetLogFields(context.Background())).To(Equal(LogFields{}))
	})
})

var _ = Describe("TraceHandler", func() {
	It("adds the context fields to each record", func() {
		var buf bytes.Buffer
		log := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil)))

		ctx := WithLogFields(context.Background(), LogFields{
			ThreadID:  Ptr("acme/novel#3"),
			EventID:   Ptr(int64(42)),
			Component: "editorial.engine.processor",
		})
		log.InfoContext(ctx, "event processed")

		var record map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &record)).To(Succeed())
		Expect(record).To(HaveKeyWithValue("thread_id", "acme/novel#3"))
		Expect(record).To(HaveKeyWithValue("event_id", BeNumerically("==", 42)))
		Expect(record).To(HaveKeyWithValue("component", "editorial.engine.processor"))
		Expect(record).NotTo(HaveKey("trace_id"))
	})
})
