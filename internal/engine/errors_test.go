package engine

import (
	"context"
	"errors"
	"fmt"

	"basegraph.app/editorial/internal/knowledge"
	"basegraph.app/editorial/internal/lock"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("classify", func() {
	DescribeTable("retryability",
		func(err error, retryable bool) {
			classified := classify(context.Background(), fmt.Errorf("wrapped: %w", err))
			var pe *ProcessError
			Expect(errors.As(classified, &pe)).To(BeTrue())
			Expect(pe.Retryable).To(Equal(retryable))
			Expect(errors.Is(classified, err)).To(BeTrue())
		},
		Entry("unknown persona", &model.UnknownPersonaError{ID: "x"}, false),
		Entry("missing rules", &model.MissingRequiredContextError{Name: "EDITORIAL_GUIDELINES.md"}, false),
		Entry("invalid transition", &model.InvalidPhaseTransitionError{ThreadID: "t1"}, false),
		Entry("non-closing summary", knowledge.ErrNotClosingSummary, false),
		Entry("invalid event", ErrInvalidEvent, false),
		Entry("stale append", &model.StaleKnowledgeAppendError{ProjectID: "p1"}, true),
		Entry("version conflict", store.ErrVersionConflict, true),
		Entry("lock held", lock.ErrHeld, true),
		Entry("timeout", context.DeadlineExceeded, true),
		Entry("network failure", errors.New("connection reset"), true),
	)

	It("keeps an existing classification", func() {
		fatal := NewFatalError(errors.New("boom"))
		Expect(classify(context.Background(), fatal)).To(BeIdenticalTo(fatal))
	})

	It("passes nil through", func() {
		Expect(classify(context.Background(), nil)).To(BeNil())
	})
})
