package knowledge_test

import (
	"time"

	"basegraph.app/editorial/internal/knowledge"
	"basegraph.app/editorial/internal/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Format", func() {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	It("renders nothing for an empty snapshot", func() {
		Expect(knowledge.Format(model.KnowledgeSnapshot{})).To(BeEmpty())
	})

	It("renders every part in a fixed order", func() {
		snap := model.KnowledgeSnapshot{
			Facts: []model.KnowledgeFact{
				{ID: 1, Question: "Point of view", Answer: "first person", ExtractedAt: t0},
				{ID: 2, Question: "Audience", Answer: "nurses", ExtractedAt: t0.Add(time.Hour)},
				{ID: 3, Question: "point of view", Answer: "close third", ExtractedAt: t0.Add(2 * time.Hour)},
			},
			Preferences: model.PreferenceMap{
				Terminology: map[string]string{"k8s": "Kubernetes", "AI": "machine learning"},
				Themes:      []string{"grief", "repair"},
				Style:       map[string]string{"tense": "past", "oxford_comma": "always"},
			},
		}

		Expect(knowledge.Format(snap)).To(Equal(`## Known Context (from author answers)

Q: Point of view
A: close third
   (superseded: first person)

Q: Audience
A: nurses

## Terminology Preferences

- Use 'machine learning' not 'AI'
- Use 'Kubernetes' not 'k8s'

## Central Themes

- grief
- repair

## Author Preferences

oxford_comma: always
tense: past`))
	})
})

var _ = Describe("ParsePreferences", func() {
	It("accepts YAML", func() {
		p, err := knowledge.ParsePreferences("p1", []byte("themes:\n  - grief\ndefault_persona: sage\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(p.ProjectID).To(Equal("p1"))
		Expect(p.Themes).To(Equal([]string{"grief"}))
		Expect(p.DefaultPersona).To(Equal("sage"))
	})

	It("accepts JSON", func() {
		p, err := knowledge.ParsePreferences("p1", []byte(`{"terminology": {"k8s": "Kubernetes"}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Terminology).To(HaveKeyWithValue("k8s", "Kubernetes"))
	})
})
