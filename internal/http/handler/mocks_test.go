package handler_test

import (
	"context"

	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/service"
)

type mockIngestService struct {
	ingestFn func(ctx context.Context, params service.EventIngestParams) (*service.EventIngestResult, error)
	calls    []service.EventIngestParams
}

func (m *mockIngestService) Ingest(ctx context.Context, params service.EventIngestParams) (*service.EventIngestResult, error) {
	m.calls = append(m.calls, params)
	if m.ingestFn != nil {
		return m.ingestFn(ctx, params)
	}
	ev := params.Event
	ev.ID = 1
	return &service.EventIngestResult{Event: ev, DedupeKey: "k", Enqueued: true}, nil
}

type mockEditorialService struct {
	personasFn           func() []model.PersonaProfile
	personaFn            func(id string) (model.PersonaProfile, error)
	projectStatusFn      func(ctx context.Context, projectID string) (*service.ProjectStatus, error)
	threadPhaseFn        func(ctx context.Context, threadID string) (*model.ThreadPhaseState, error)
	knowledgeFn          func(ctx context.Context, projectID string) (*service.KnowledgeView, error)
	replacePreferencesFn func(ctx context.Context, projectID string, document []byte, expectedVersion int64) (model.PreferenceMap, error)
}

func (m *mockEditorialService) Personas() []model.PersonaProfile {
	if m.personasFn != nil {
		return m.personasFn()
	}
	return nil
}

func (m *mockEditorialService) Persona(id string) (model.PersonaProfile, error) {
	if m.personaFn != nil {
		return m.personaFn(id)
	}
	return model.PersonaProfile{}, &model.UnknownPersonaError{ID: id}
}

func (m *mockEditorialService) ProjectStatus(ctx context.Context, projectID string) (*service.ProjectStatus, error) {
	if m.projectStatusFn != nil {
		return m.projectStatusFn(ctx, projectID)
	}
	return nil, nil
}

func (m *mockEditorialService) ThreadPhase(ctx context.Context, threadID string) (*model.ThreadPhaseState, error) {
	if m.threadPhaseFn != nil {
		return m.threadPhaseFn(ctx, threadID)
	}
	return nil, nil
}

func (m *mockEditorialService) Knowledge(ctx context.Context, projectID string) (*service.KnowledgeView, error) {
	if m.knowledgeFn != nil {
		return m.knowledgeFn(ctx, projectID)
	}
	return nil, nil
}

func (m *mockEditorialService) ReplacePreferences(ctx context.Context, projectID string, document []byte, expectedVersion int64) (model.PreferenceMap, error) {
	if m.replacePreferencesFn != nil {
		return m.replacePreferencesFn(ctx, projectID, document, expectedVersion)
	}
	return model.PreferenceMap{}, nil
}
