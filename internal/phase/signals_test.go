package phase_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/phase"
)

func values(signals []model.Signal) []string {
	out := make([]string, 0, len(signals))
	for _, s := range signals {
		out = append(out, s.Value)
	}
	return out
}

var _ = Describe("ProjectTextSignals", func() {
	It("finds signals in reading order with increasing seq", func() {
		signals := phase.ProjectTextSignals("I'm ready to revise. Actually no, keep drafting.", 3)
		Expect(values(signals)).To(Equal([]string{model.SignalReadyToRevise, model.SignalKeepDrafting}))
		Expect(signals[0].Seq).To(Equal(3))
		Expect(signals[1].Seq).To(Equal(4))
		Expect(signals[0].Kind).To(Equal(model.SignalExplicit))
	})

	It("does not read a negated phrase as its positive form", func() {
		signals := phase.ProjectTextSignals("I'm not ready to revise yet", 0)
		Expect(values(signals)).To(Equal([]string{model.SignalKeepDrafting}))
	})

	It("captures revert targets", func() {
		signals := phase.ProjectTextSignals("Let's go back to drafting", 0)
		Expect(values(signals)).To(Equal([]string{"revert_to:drafting"}))
	})
})

var _ = Describe("ThreadTextSignals", func() {
	DescribeTable("detects",
		func(text string, expected string) {
			Expect(values(phase.ThreadTextSignals(text, 0))).To(ContainElement(expected))
		},
		Entry("skip discovery", "Please just review this", model.SignalSkipDiscovery),
		Entry("curly apostrophe", "Don’t ask, tell me", model.SignalSkipDiscovery),
		Entry("incorporating", "I'm incorporating your feedback now", model.SignalIncorporating),
		Entry("pause", "Can we put this on hold?", model.SignalPause),
		Entry("resume", "Ready to continue with this one", model.SignalResume),
	)
})

var _ = Describe("LabelSignals", func() {
	It("maps hold and skip labels to thread signals", func() {
		_, thread := phase.LabelSignals([]string{"phase:hold", "quick-review", "bug"})
		Expect(values(thread)).To(ConsistOf(model.SignalPause, model.SignalSkipDiscovery))
	})

	It("maps project labels", func() {
		project, _ := phase.LabelSignals([]string{"keep-drafting"})
		Expect(values(project)).To(Equal([]string{model.SignalKeepDrafting}))
	})
})

var _ = Describe("ShouldSkipDiscovery", func() {
	It("honors phrases and labels", func() {
		Expect(phase.ShouldSkipDiscovery("tear it apart", nil)).To(BeTrue())
		Expect(phase.ShouldSkipDiscovery("hello", []string{"phase:polish"})).To(BeTrue())
		Expect(phase.ShouldSkipDiscovery("hello", []string{"phase:discovery"})).To(BeFalse())
	})
})

var _ = Describe("ContentSignals", func() {
	It("emits nothing when thresholds are disabled", func() {
		Expect(phase.ContentSignals(false, 90000, 20, phase.Thresholds{}, 0)).To(BeEmpty())
	})

	It("requires every configured threshold", func() {
		t := phase.Thresholds{MinWords: 50000, MinChapters: 10}
		Expect(phase.ContentSignals(false, 60000, 9, t, 0)).To(BeEmpty())
		Expect(values(phase.ContentSignals(true, 60000, 10, t, 0))).To(Equal([]string{
			model.SignalFragmentIncorporated, model.SignalContentThreshold,
		}))
	})
})

var _ = Describe("DetectEmotionalState", func() {
	DescribeTable("states",
		func(text string, expected phase.EmotionalState) {
			state, ok := phase.DetectEmotionalState(text)
			Expect(ok).To(BeTrue())
			Expect(state).To(Equal(expected))
		},
		Entry("vulnerable", "This is rough, be gentle", phase.EmotionVulnerable),
		Entry("confident", "Tear it apart, don't hold back", phase.EmotionConfident),
		Entry("frustrated", "Ugh, I'm stuck", phase.EmotionFrustrated),
		Entry("blocked", "Blank page, I'm paralyzed", phase.EmotionBlocked),
		Entry("defensive", "I disagree, that's intentional", phase.EmotionDefensive),
		Entry("excited", "It clicked! So excited", phase.EmotionExcited),
		Entry("uncertain", "Is this right? What do you think?", phase.EmotionUncertain),
	)

	It("reports nothing for neutral text", func() {
		_, ok := phase.DetectEmotionalState("Chapter three attached.")
		Expect(ok).To(BeFalse())
	})
})
