package assembler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"basegraph.app/editorial/internal/assembler"
	"basegraph.app/editorial/internal/memory"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/persona"
	"basegraph.app/editorial/internal/phase"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Assembler", func() {
	var (
		ctx      context.Context
		catalog  *persona.Catalog
		resolver *persona.Resolver
		asm      *assembler.Assembler
		snapshot model.KnowledgeSnapshot
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		catalog, err = persona.DefaultCatalog()
		Expect(err).NotTo(HaveOccurred())
		resolver = persona.NewResolver(catalog, 1)
		asm = assembler.New(catalog, assembler.DefaultRules(), memory.Budget{})
		snapshot = model.KnowledgeSnapshot{
			ProjectID: "p1",
			Facts: []model.KnowledgeFact{{
				ID: 1, ProjectID: "p1", Question: "Audience", Answer: "nurses",
				ExtractedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Confidence: model.ConfidenceExplicit,
			}},
			FactsVersion: 1,
			Preferences:  model.PreferenceMap{ProjectID: "p1", Version: 2, Themes: []string{"care"}},
		}
	})

	input := func(text string, turns []model.ConversationTurn) assembler.Input {
		res, err := resolver.Resolve(persona.ResolveInput{Command: text})
		Expect(err).NotTo(HaveOccurred())
		emotion, _ := phase.DetectEmotionalState(text)
		return assembler.Input{
			ProjectID: "p1",
			ThreadID:  "t1",
			Persona:   res,
			Snapshot:  snapshot,
			Project:   model.ProjectPhaseState{ProjectID: "p1", Phase: model.ProjectPhaseDrafting},
			Thread:    model.ThreadPhaseState{ThreadID: "t1", ProjectID: "p1", Phase: model.ThreadPhaseFeedback},
			Memory:    memory.View{Recent: turns},
			Emotion:   emotion,
			Task:      res.Request,
		}
	}

	It("lays sections out in the fixed order", func() {
		bundle, err := asm.Assemble(ctx, input("Thoughts on chapter one?", nil))
		Expect(err).NotTo(HaveOccurred())

		names := make([]model.SectionName, 0, len(bundle.Sections))
		for _, s := range bundle.Sections {
			names = append(names, s.Name)
		}
		Expect(names).To(Equal(model.SectionOrder))
		Expect(bundle.Sections[0].Cacheable).To(BeTrue())
		Expect(bundle.Sections[2].Cacheable).To(BeTrue())
		Expect(bundle.Sections[3].Cacheable).To(BeFalse())
		Expect(bundle.SnapshotVersion).To(Equal("f1.p2"))
		Expect(bundle.PersonaID).To(Equal(persona.SystemDefault))
	})

	It("keeps the cacheable prefix byte-identical across turns and tasks", func() {
		first, err := asm.Assemble(ctx, input("I'm stuck on the opening, ugh.", []model.ConversationTurn{
			{Index: 0, Role: model.RoleAuthor, Author: "alice", Text: "here is chapter one"},
		}))
		Expect(err).NotTo(HaveOccurred())

		second, err := asm.Assemble(ctx, input("Tear it apart, I'm ready for feedback.", []model.ConversationTurn{
			{Index: 0, Role: model.RoleAuthor, Author: "alice", Text: "here is chapter one"},
			{Index: 1, Role: model.RoleEditor, Author: "margot", Text: "**What should the reader feel at the end?**"},
			{Index: 2, Role: model.RoleAuthor, Author: "alice", Text: "hope"},
		}))
		Expect(err).NotTo(HaveOccurred())

		Expect(second.CacheablePrefix()).To(Equal(first.CacheablePrefix()))
		Expect(second.Volatile()).NotTo(Equal(first.Volatile()))
	})

	It("changes the prefix when the persona or intensity changes", func() {
		base, err := asm.Assemble(ctx, input("hello there", nil))
		Expect(err).NotTo(HaveOccurred())
		axe, err := asm.Assemble(ctx, input("as the-axe: hello there", nil))
		Expect(err).NotTo(HaveOccurred())
		harsh, err := asm.Assemble(ctx, input("be harsher please", nil))
		Expect(err).NotTo(HaveOccurred())

		Expect(axe.CacheablePrefix()).NotTo(Equal(base.CacheablePrefix()))
		Expect(harsh.CacheablePrefix()).NotTo(Equal(base.CacheablePrefix()))
		Expect(harsh.IntensityDelta).To(Equal(1))
	})

	It("renders knowledge, guidance and history", func() {
		in := input("What do you think of this?", nil)
		in.Memory = memory.View{
			Recent:        []model.ConversationTurn{{Index: 0, Role: model.RoleAuthor, Author: "alice", Text: "new draft"}},
			OpenQuestions: []string{"Who narrates the final chapter?"},
		}
		bundle, err := asm.Assemble(ctx, in)
		Expect(err).NotTo(HaveOccurred())

		k, _ := bundle.Section(model.SectionKnowledge)
		Expect(k.Content).To(ContainSubstring("Q: Audience\nA: nurses"))
		g, _ := bundle.Section(model.SectionPhaseGuidance)
		Expect(g.Content).To(ContainSubstring("## Book Phase: Drafting"))
		Expect(g.Content).To(ContainSubstring("Who narrates the final chapter?"))
		h, _ := bundle.Section(model.SectionHistory)
		Expect(h.Content).To(ContainSubstring("new draft"))
		Expect(bundle.Budget.Used).To(BeNumerically(">", 0))
	})

	It("fails when the guidelines are missing", func() {
		asm = assembler.New(catalog, assembler.NewFileRules(GinkgoT().TempDir()), memory.Budget{})
		_, err := asm.Assemble(ctx, input("hi", nil))
		var missing *model.MissingRequiredContextError
		Expect(errors.As(err, &missing)).To(BeTrue())
		Expect(missing.Name).To(HaveSuffix(assembler.GuidelinesFile))
	})

	It("fails when the guidelines are empty", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, assembler.GuidelinesFile), []byte("  \n"), 0o600)).To(Succeed())
		asm = assembler.New(catalog, assembler.NewFileRules(dir), memory.Budget{})
		_, err := asm.Assemble(ctx, input("hi", nil))
		var missing *model.MissingRequiredContextError
		Expect(errors.As(err, &missing)).To(BeTrue())
	})

	It("reads rules from a directory with an optional style guide", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, assembler.GuidelinesFile), []byte("Be kind."), 0o600)).To(Succeed())
		rules, err := assembler.NewFileRules(dir).Rules(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(rules).To(Equal("Be kind."))

		Expect(os.WriteFile(filepath.Join(dir, assembler.StyleGuideFile), []byte("Short sentences."), 0o600)).To(Succeed())
		rules, err = assembler.NewFileRules(dir).Rules(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(rules).To(Equal("Be kind.\n\nShort sentences."))
	})
})
