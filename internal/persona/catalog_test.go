package persona_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/persona"
)

var _ = Describe("Catalog", func() {
	var catalog *persona.Catalog

	BeforeEach(func() {
		var err error
		catalog, err = persona.DefaultCatalog()
		Expect(err).NotTo(HaveOccurred())
	})

	It("ships the eight editors", func() {
		Expect(catalog.IDs()).To(ConsistOf(
			"margot", "sage", "blueprint", "sterling", "the-axe", "cheerleader", "ivory-tower", "bestseller",
		))
	})

	It("contains the system default", func() {
		Expect(catalog.Has(persona.SystemDefault)).To(BeTrue())
	})

	DescribeTable("signature traits",
		func(id string, check func(model.Traits)) {
			p, ok := catalog.Get(id)
			Expect(ok).To(BeTrue())
			check(p.Traits)
		},
		Entry("margot is direct and ruthless", "margot", func(t model.Traits) {
			Expect(t.Directness).To(BeNumerically(">=", 8))
			Expect(t.Ruthlessness).To(BeNumerically(">=", 7))
		}),
		Entry("sage protects voice", "sage", func(t model.Traits) {
			Expect(t.VoiceProtection).To(Equal(10))
			Expect(t.PraiseFrequency).To(BeNumerically(">=", 8))
		}),
		Entry("blueprint is all structure", "blueprint", func(t model.Traits) {
			Expect(t.StructureFocus).To(Equal(10))
		}),
		Entry("sterling knows the market", "sterling", func(t model.Traits) {
			Expect(t.MarketAwareness).To(Equal(10))
		}),
		Entry("the axe cuts", "the-axe", func(t model.Traits) {
			Expect(t.Ruthlessness).To(Equal(10))
			Expect(t.PraiseFrequency).To(Equal(1))
		}),
		Entry("cheerleader cheers", "cheerleader", func(t model.Traits) {
			Expect(t.PraiseFrequency).To(Equal(10))
			Expect(t.Ruthlessness).To(Equal(1))
		}),
		Entry("ivory tower ignores the market", "ivory-tower", func(t model.Traits) {
			Expect(t.Formality).To(Equal(10))
			Expect(t.MarketAwareness).To(Equal(1))
		}),
		Entry("bestseller sells", "bestseller", func(t model.Traits) {
			Expect(t.MarketAwareness).To(Equal(10))
			Expect(t.VoiceProtection).To(Equal(2))
		}),
	)

	It("rejects out of range traits", func() {
		_, err := persona.ParseCatalog([]byte(`
personas:
  - id: broken
    name: Broken
    traits:
      directness: 11
`))
		Expect(err).To(MatchError(ContainSubstring("out of range")))
	})

	It("rejects duplicate ids", func() {
		_, err := persona.ParseCatalog([]byte(`
personas:
  - id: a
    name: A
  - id: a
    name: A again
`))
		Expect(err).To(MatchError(ContainSubstring("duplicate")))
	})

	It("rejects unknown fields", func() {
		_, err := persona.ParseCatalog([]byte(`
personas:
  - id: a
    name: A
    mood: grumpy
`))
		Expect(err).To(HaveOccurred())
	})
})
