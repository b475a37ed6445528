package knowledge_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"basegraph.app/editorial/internal/knowledge"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() int64 { return s.n.Add(1) }

// racingKnowledge lets another writer append just before the first Append.
type racingKnowledge struct {
	store.KnowledgeStore
	once   sync.Once
	before func()
}

func (r *racingKnowledge) Append(ctx context.Context, projectID string, expected int64, facts []model.KnowledgeFact) (int64, error) {
	r.once.Do(r.before)
	return r.KnowledgeStore.Append(ctx, projectID, expected, facts)
}

func closing(threadID string, facts ...model.ExtractedFact) model.ThreadSummary {
	return model.ThreadSummary{
		ThreadID:    threadID,
		ProjectID:   "p1",
		ThreadPhase: model.ThreadPhaseComplete,
		Final:       true,
		Facts:       facts,
	}
}

func explicit(subject, value string) model.ExtractedFact {
	return model.ExtractedFact{Subject: subject, Value: value, Confidence: model.ConfidenceExplicit}
}

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		mem     *store.Memory
		service *knowledge.Service
		now     time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		mem = store.NewMemory()
		now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
		service = knowledge.NewService(mem, &seqIDs{}, 3).WithClock(func() time.Time { return now })
	})

	Describe("AppendClosingSummary", func() {
		It("rejects summaries of threads that are not complete", func() {
			s := closing("t1", explicit("genre", "memoir"))
			s.ThreadPhase = model.ThreadPhaseFeedback
			_, err := service.AppendClosingSummary(ctx, mem.Knowledge(), nil, 0, s)
			Expect(err).To(MatchError(knowledge.ErrNotClosingSummary))
		})

		It("rejects summaries that are not final", func() {
			s := closing("t1", explicit("genre", "memoir"))
			s.Final = false
			_, err := service.AppendClosingSummary(ctx, mem.Knowledge(), nil, 0, s)
			Expect(err).To(MatchError(knowledge.ErrNotClosingSummary))
		})

		It("appends only explicit facts, tagged with the closing thread", func() {
			s := closing("t1", explicit("genre", "memoir"), model.ExtractedFact{
				Subject: "tone", Value: "wry", Confidence: model.ConfidenceInferred,
			})

			result, err := service.AppendClosingSummary(ctx, mem.Knowledge(), nil, 0, s)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Version).To(Equal(int64(1)))
			Expect(result.Facts).To(HaveLen(1))
			Expect(result.Facts[0].SourceThreadID).To(Equal("t1"))
			Expect(result.Facts[0].ExtractedAt).To(Equal(now))
			Expect(result.Facts[0].ID).NotTo(BeZero())
		})

		It("skips facts that are already known", func() {
			known := []model.KnowledgeFact{{ID: 9, Question: "Genre", Answer: "Memoir", SourceThreadID: "t0"}}
			result, err := service.AppendClosingSummary(ctx, mem.Knowledge(), known, 0, closing("t1", explicit("genre", "memoir")))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Facts).To(BeEmpty())
			Expect(result.Version).To(BeZero())
		})

		DescribeTable("judges a restated fact against the latest answer on its subject",
			func(incoming string, expectNew bool, expectConflictWith string) {
				known := []model.KnowledgeFact{
					{ID: 2, Question: "Audience", Answer: "adults", SourceThreadID: "t2", ExtractedAt: now.Add(-time.Hour)},
					{ID: 1, Question: "Audience", Answer: "kids", SourceThreadID: "t1", ExtractedAt: now.Add(-2 * time.Hour)},
				}
				result, err := service.AppendClosingSummary(ctx, mem.Knowledge(), known, 0, closing("t3", explicit("audience", incoming)))
				Expect(err).NotTo(HaveOccurred())

				if !expectNew {
					Expect(result.Facts).To(BeEmpty())
					Expect(result.Conflicts).To(BeEmpty())
					return
				}
				Expect(result.Facts).To(ConsistOf(HaveField("Answer", incoming)))
				Expect(result.Conflicts).To(HaveLen(1))
				Expect(result.Conflicts[0].Established).To(Equal(expectConflictWith))
				Expect(result.Conflicts[0].EstablishedRef).To(Equal("thread t2"))
			},
			Entry("restating the latest answer", "Adults", false, ""),
			Entry("returning to a superseded answer", "kids", true, "adults"),
			Entry("a new answer", "teens", true, "adults"),
		)
	})

	Describe("AppendWithRetry", func() {
		It("keeps both facts and flags the conflict when two threads close concurrently", func() {
			ks := &racingKnowledge{KnowledgeStore: mem.Knowledge()}
			ks.before = func() {
				_, err := service.AppendWithRetry(ctx, mem.Knowledge(), closing("t-a", explicit("point of view", "first person")))
				Expect(err).NotTo(HaveOccurred())
			}

			result, err := service.AppendWithRetry(ctx, ks, closing("t-b", explicit("Point of view", "close third")))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Attempts).To(Equal(2))
			Expect(result.Conflicts).To(HaveLen(1))
			Expect(result.Conflicts[0].Established).To(Equal("first person"))
			Expect(result.Conflicts[0].Incoming).To(Equal("close third"))

			facts, version, err := mem.Knowledge().List(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(int64(2)))
			Expect(facts).To(HaveLen(2))
		})

		It("gives up after the configured attempts", func() {
			ks := &alwaysStale{}
			_, err := service.AppendWithRetry(ctx, ks, closing("t1", explicit("genre", "memoir")))
			var stale *model.StaleKnowledgeAppendError
			Expect(errors.As(err, &stale)).To(BeTrue())
			Expect(ks.appends).To(Equal(3))
		})
	})

	Describe("Load", func() {
		It("returns facts and preferences with their versions", func() {
			_, err := service.AppendWithRetry(ctx, mem.Knowledge(), closing("t1", explicit("genre", "memoir")))
			Expect(err).NotTo(HaveOccurred())
			_, err = mem.Preferences().Replace(ctx, model.PreferenceMap{ProjectID: "p1", Themes: []string{"grief"}}, 0)
			Expect(err).NotTo(HaveOccurred())

			snap, err := service.Load(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Facts).To(HaveLen(1))
			Expect(snap.Version()).To(Equal("f1.p1"))
		})
	})
})

type alwaysStale struct{ appends int }

func (a *alwaysStale) List(context.Context, string) ([]model.KnowledgeFact, int64, error) {
	return nil, int64(a.appends), nil
}

func (a *alwaysStale) Append(_ context.Context, projectID string, expected int64, _ []model.KnowledgeFact) (int64, error) {
	a.appends++
	return 0, &model.StaleKnowledgeAppendError{ProjectID: projectID, Expected: expected, Actual: expected + 1}
}
