package persona_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/persona"
)

var _ = Describe("Resolver", func() {
	var resolver *persona.Resolver

	BeforeEach(func() {
		catalog, err := persona.DefaultCatalog()
		Expect(err).NotTo(HaveOccurred())
		resolver = persona.NewResolver(catalog, 1)
	})

	It("lets an inline command beat a label and the stored default", func() {
		res, err := resolver.Resolve(persona.ResolveInput{
			Command:       "as the-axe",
			ThreadLabels:  []string{"persona:sage"},
			StoredDefault: "margot",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.PersonaID).To(Equal("the-axe"))
		Expect(res.Source).To(Equal(persona.SourceCommand))
		Expect(res.Persist).To(BeFalse())
	})

	It("persists use commands", func() {
		res, err := resolver.Resolve(persona.ResolveInput{Command: "@editor use sage please look at this"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.PersonaID).To(Equal("sage"))
		Expect(res.Persist).To(BeTrue())
		Expect(res.Request).To(Equal("please look at this"))
	})

	DescribeTable("priority",
		func(in persona.ResolveInput, expectedID, expectedSource string) {
			res, err := resolver.Resolve(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.PersonaID).To(Equal(expectedID))
			Expect(res.Source).To(Equal(expectedSource))
		},
		Entry("thread override over label",
			persona.ResolveInput{ThreadOverride: "blueprint", ThreadLabels: []string{"persona:sage"}}, "blueprint", persona.SourceThreadOverride),
		Entry("label over env",
			persona.ResolveInput{ThreadLabels: []string{"draft", "persona:sage"}, EnvDefault: "sterling"}, "sage", persona.SourceLabel),
		Entry("env over stored",
			persona.ResolveInput{EnvDefault: "sterling", StoredDefault: "sage"}, "sterling", persona.SourceEnv),
		Entry("stored over system",
			persona.ResolveInput{StoredDefault: "sage"}, "sage", persona.SourceStored),
		Entry("system default",
			persona.ResolveInput{}, "margot", persona.SourceSystem),
		Entry("prose that starts with 'as' is not a command",
			persona.ResolveInput{Command: "As I said, the ending drags"}, "margot", persona.SourceSystem),
		Entry("prose that starts with 'use' is not a command",
			persona.ResolveInput{Command: "Use more dialogue in chapter two?"}, "margot", persona.SourceSystem),
	)

	It("is deterministic", func() {
		in := persona.ResolveInput{Command: "hello", ThreadLabels: []string{"persona:the-axe", "persona:sage"}, StoredDefault: "margot"}
		first, err := resolver.Resolve(in)
		Expect(err).NotTo(HaveOccurred())
		for range 5 {
			again, err := resolver.Resolve(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.PersonaID).To(Equal(first.PersonaID))
		}
		Expect(first.PersonaID).To(Equal("sage"))
	})

	DescribeTable("unknown ids fail hard",
		func(in persona.ResolveInput, badID, source string) {
			_, err := resolver.Resolve(in)
			var unknown *model.UnknownPersonaError
			Expect(errors.As(err, &unknown)).To(BeTrue())
			Expect(unknown.ID).To(Equal(badID))
			Expect(unknown.Source).To(Equal(source))
			Expect(unknown.Valid).To(ContainElements("margot", "the-axe"))
		},
		Entry("mentioned command", persona.ResolveInput{Command: "@editor use nobody"}, "nobody", persona.SourceCommand),
		Entry("use with a colon without a mention", persona.ResolveInput{Command: "use margo: review this"}, "margo", persona.SourceCommand),
		Entry("switch to without a mention", persona.ResolveInput{Command: "switch to sagee"}, "sagee", persona.SourceCommand),
		Entry("as with a request without a mention",
			persona.ResolveInput{Command: "as the-axx: tear this chapter apart"}, "the-axx", persona.SourceCommand),
		Entry("label", persona.ResolveInput{ThreadLabels: []string{"persona:ghost"}}, "ghost", persona.SourceLabel),
		Entry("env even when a command wins", persona.ResolveInput{Command: "as sage", EnvDefault: "typo"}, "typo", persona.SourceEnv),
		Entry("stored default", persona.ResolveInput{StoredDefault: "margo"}, "margo", persona.SourceStored),
	)

	Describe("intensity", func() {
		It("shifts ruthlessness and challenge level by the step", func() {
			res, err := resolver.Resolve(persona.ResolveInput{Command: "be harsher please", ThreadOverride: "sage"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IntensityDelta).To(Equal(1))
			base, _ := resolver.Catalog().Get("sage")
			Expect(res.Persona.Traits.Ruthlessness).To(Equal(base.Traits.Ruthlessness + 1))
			Expect(res.Persona.Traits.ChallengeLevel).To(Equal(base.Traits.ChallengeLevel + 1))
			Expect(res.Persona.Traits.Directness).To(Equal(base.Traits.Directness))
		})

		It("clamps traits to the scale", func() {
			res, err := resolver.Resolve(persona.ResolveInput{ThreadOverride: "the-axe", IntensityDelta: 4})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Persona.Traits.Ruthlessness).To(Equal(10))
		})

		It("clamps the delta", func() {
			res, err := resolver.Resolve(persona.ResolveInput{Command: "be harsher", IntensityDelta: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IntensityDelta).To(Equal(10))
		})

		It("takes the last modifier and says so", func() {
			res, err := resolver.Resolve(persona.ResolveInput{Command: "be harsher. no wait, be gentler", IntensityDelta: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IntensityDelta).To(Equal(1))
			Expect(res.IntensityNote).To(ContainSubstring("gentler"))
		})

		It("resets", func() {
			res, err := resolver.Resolve(persona.ResolveInput{Command: "reset intensity", IntensityDelta: -3})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IntensityDelta).To(BeZero())
		})

		It("uses the configured step", func() {
			catalog, _ := persona.DefaultCatalog()
			res, err := persona.NewResolver(catalog, 3).Resolve(persona.ResolveInput{Command: "be gentler"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IntensityDelta).To(Equal(-3))
		})
	})

	It("flags list requests", func() {
		res, err := resolver.Resolve(persona.ResolveInput{Command: "@editor list personas"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ListRequested).To(BeTrue())
	})
})
