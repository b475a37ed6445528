package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/editorial/internal/knowledge"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/persona"
	"basegraph.app/editorial/internal/service"
	"basegraph.app/editorial/internal/store"
)

var _ = Describe("EditorialService", func() {
	var (
		ctx   context.Context
		mem   *store.Memory
		svc   service.EditorialService
		ids   *seqIDs
		catID []string
	)

	BeforeEach(func() {
		ctx = context.Background()
		mem = store.NewMemory()
		ids = &seqIDs{}
		catalog, err := persona.DefaultCatalog()
		Expect(err).NotTo(HaveOccurred())
		catID = catalog.IDs()
		svc = service.NewEditorialService(mem, catalog, knowledge.NewService(mem, ids, 3))
	})

	Describe("personas", func() {
		It("lists the whole catalog", func() {
			Expect(svc.Personas()).To(HaveLen(len(catID)))
		})

		It("reports unknown ids", func() {
			_, err := svc.Persona("nobody")
			var unknown *model.UnknownPersonaError
			Expect(errors.As(err, &unknown)).To(BeTrue())
		})
	})

	Describe("phase lookups", func() {
		It("returns not found for unseen projects and threads", func() {
			_, err := svc.ProjectStatus(ctx, "group/novel")
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
			_, err = svc.ThreadPhase(ctx, "group/novel#1")
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})

		It("lists the project's threads with the project phase", func() {
			_, err := mem.Projects().Save(ctx, model.ProjectPhaseState{ProjectID: "group/novel", Phase: model.ProjectPhaseDrafting}, 0)
			Expect(err).NotTo(HaveOccurred())
			_, err = mem.Threads().Save(ctx, model.ThreadPhaseState{ThreadID: "group/novel#1", ProjectID: "group/novel", Phase: model.ThreadPhaseFeedback}, 0)
			Expect(err).NotTo(HaveOccurred())

			status, err := svc.ProjectStatus(ctx, "group/novel")
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Project.Phase).To(Equal(model.ProjectPhaseDrafting))
			Expect(status.Threads).To(HaveLen(1))
			Expect(status.Threads[0].Phase).To(Equal(model.ThreadPhaseFeedback))
		})
	})

	Describe("ReplacePreferences", func() {
		doc := []byte("terminology:\n  sword: blade\nthemes:\n  - grief\ndefault_persona: sage\n")

		It("creates the document at version 1 and renders it into knowledge", func() {
			saved, err := svc.ReplacePreferences(ctx, "group/novel", doc, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Version).To(Equal(int64(1)))
			Expect(saved.Terminology).To(HaveKeyWithValue("sword", "blade"))

			view, err := svc.Knowledge(ctx, "group/novel")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Snapshot.Preferences.Version).To(Equal(int64(1)))
			Expect(view.Rendered).To(ContainSubstring("Use 'blade' not 'sword'"))
			Expect(view.Rendered).To(ContainSubstring("grief"))
		})

		It("accepts JSON documents", func() {
			saved, err := svc.ReplacePreferences(ctx, "group/novel", []byte(`{"themes": ["memory"]}`), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Themes).To(ConsistOf("memory"))
		})

		It("rejects a stale version", func() {
			_, err := svc.ReplacePreferences(ctx, "group/novel", doc, 0)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.ReplacePreferences(ctx, "group/novel", doc, 0)
			Expect(errors.Is(err, store.ErrVersionConflict)).To(BeTrue())
		})

		It("rejects an unknown default persona", func() {
			_, err := svc.ReplacePreferences(ctx, "group/novel", []byte("default_persona: nobody\n"), 0)
			var unknown *model.UnknownPersonaError
			Expect(errors.As(err, &unknown)).To(BeTrue())
		})

		It("rejects malformed documents", func() {
			_, err := svc.ReplacePreferences(ctx, "group/novel", []byte("themes: [unterminated"), 0)
			Expect(errors.Is(err, service.ErrInvalidInput)).To(BeTrue())
		})
	})
})
