package phase_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/phase"
)

var _ = Describe("BookPhaseGuidance", func() {
	It("renders every phase", func() {
		for _, p := range model.ProjectPhases() {
			Expect(phase.BookPhaseGuidance(p)).To(HavePrefix("## Book Phase:"))
		}
	})

	It("includes focus, style and criticism", func() {
		out := phase.BookPhaseGuidance(model.ProjectPhaseDrafting)
		Expect(out).To(ContainSubstring("Your focus at this phase"))
		Expect(out).To(ContainSubstring("Balance encouragement with substantive feedback"))
		Expect(phase.BookPhaseGuidance(model.ProjectPhaseNew)).To(ContainSubstring("## Book Phase: New Project"))
		Expect(phase.BookPhaseGuidance(model.ProjectPhaseRevising)).To(And(ContainSubstring("rigorous"), ContainSubstring("high")))
	})

	DescribeTable("styles",
		func(p model.ProjectPhase, style, level string) {
			Expect(phase.FeedbackStyle(p)).To(Equal(style))
			Expect(phase.CriticismLevel(p)).To(Equal(level))
		},
		Entry("new", model.ProjectPhaseNew, "encouraging", "minimal"),
		Entry("drafting", model.ProjectPhaseDrafting, "balanced", "moderate"),
		Entry("revising", model.ProjectPhaseRevising, "rigorous", "high"),
		Entry("polishing", model.ProjectPhasePolishing, "precise", "detailed"),
		Entry("complete", model.ProjectPhaseComplete, "celebratory", "none"),
	)
})

var _ = Describe("Guidance", func() {
	It("adds discovery questions only in discovery", func() {
		d := &model.PersonaDiscovery{Philosophy: "Listen first.", IntakeQuestions: []string{"Who is this for?"}}
		in := phase.GuidanceInput{Project: model.ProjectPhaseNew, Thread: model.ThreadPhaseDiscovery, Discovery: d}
		Expect(phase.Guidance(in)).To(ContainSubstring("Who is this for?"))

		in.Thread = model.ThreadPhaseFeedback
		out := phase.Guidance(in)
		Expect(out).NotTo(ContainSubstring("Who is this for?"))
		Expect(out).To(ContainSubstring("CRITICAL"))
	})

	It("reminds about outstanding questions and author state", func() {
		out := phase.Guidance(phase.GuidanceInput{
			Project:       model.ProjectPhaseDrafting,
			Thread:        model.ThreadPhaseFeedback,
			Emotion:       phase.EmotionFrustrated,
			OpenQuestions: []string{"What does the ending mean to you?"},
		})
		Expect(out).To(ContainSubstring("## Outstanding Questions"))
		Expect(out).To(ContainSubstring("What does the ending mean to you?"))
		Expect(out).To(ContainSubstring("The author seems frustrated"))
	})

	It("tells the editor not to push on hold", func() {
		Expect(phase.ThreadPhasePrompt(model.ThreadPhaseHold)).To(ContainSubstring("Do not push for action."))
		Expect(phase.ThreadPhasePrompt(model.ThreadPhaseRevision)).To(ContainSubstring("Be responsive, not directive."))
	})
})
