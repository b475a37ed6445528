package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"basegraph.app/editorial/internal/knowledge"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/persona"
	"basegraph.app/editorial/internal/store"
)

var ErrInvalidInput = errors.New("invalid input")

// ProjectStatus is a project's phase together with the phases of its threads.
type ProjectStatus struct {
	Project *model.ProjectPhaseState
	Threads []model.ThreadPhaseState
}

// KnowledgeView is the snapshot plus the text the assembler would render for it.
type KnowledgeView struct {
	Snapshot model.KnowledgeSnapshot
	Rendered string
}

// EditorialService is the read and preference-write surface over engine state.
type EditorialService interface {
	Personas() []model.PersonaProfile
	Persona(id string) (model.PersonaProfile, error)
	ProjectStatus(ctx context.Context, projectID string) (*ProjectStatus, error)
	ThreadPhase(ctx context.Context, threadID string) (*model.ThreadPhaseState, error)
	Knowledge(ctx context.Context, projectID string) (*KnowledgeView, error)
	// ReplacePreferences swaps the whole preference document when the stored
	// version still equals expectedVersion.
	ReplacePreferences(ctx context.Context, projectID string, document []byte, expectedVersion int64) (model.PreferenceMap, error)
}

type editorialService struct {
	stores    store.Provider
	catalog   *persona.Catalog
	knowledge *knowledge.Service
}

func NewEditorialService(stores store.Provider, catalog *persona.Catalog, knowledge *knowledge.Service) EditorialService {
	return &editorialService{stores: stores, catalog: catalog, knowledge: knowledge}
}

func (s *editorialService) Personas() []model.PersonaProfile {
	return s.catalog.All()
}

func (s *editorialService) Persona(id string) (model.PersonaProfile, error) {
	return s.catalog.Lookup(id, "request")
}

func (s *editorialService) ProjectStatus(ctx context.Context, projectID string) (*ProjectStatus, error) {
	project, err := s.stores.Projects().Get(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading project phase: %w", err)
	}
	threads, err := s.stores.Threads().ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing thread phases: %w", err)
	}
	return &ProjectStatus{Project: project, Threads: threads}, nil
}

func (s *editorialService) ThreadPhase(ctx context.Context, threadID string) (*model.ThreadPhaseState, error) {
	thread, err := s.stores.Threads().Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading thread phase: %w", err)
	}
	return thread, nil
}

func (s *editorialService) Knowledge(ctx context.Context, projectID string) (*KnowledgeView, error) {
	snap, err := s.knowledge.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &KnowledgeView{Snapshot: snap, Rendered: knowledge.Format(snap)}, nil
}

func (s *editorialService) ReplacePreferences(ctx context.Context, projectID string, document []byte, expectedVersion int64) (model.PreferenceMap, error) {
	if projectID == "" {
		return model.PreferenceMap{}, fmt.Errorf("%w: project id is required", ErrInvalidInput)
	}
	if expectedVersion < 0 {
		return model.PreferenceMap{}, fmt.Errorf("%w: version must not be negative", ErrInvalidInput)
	}

	prefs, err := knowledge.ParsePreferences(projectID, document)
	if err != nil {
		return model.PreferenceMap{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if prefs.DefaultPersona != "" {
		if _, err := s.catalog.Lookup(prefs.DefaultPersona, "preferences"); err != nil {
			return model.PreferenceMap{}, err
		}
	}

	saved, err := s.stores.Preferences().Replace(ctx, prefs, expectedVersion)
	if err != nil {
		return model.PreferenceMap{}, fmt.Errorf("replacing preferences: %w", err)
	}

	slog.InfoContext(ctx, "author preferences replaced",
		"project_id", projectID,
		"version", saved.Version,
		"terms", len(saved.Terminology),
		"themes", len(saved.Themes))
	return saved, nil
}
