package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"basegraph.app/editorial/internal/model"
)

type memData struct {
	facts        map[string][]model.KnowledgeFact
	factVersions map[string]int64
	prefs        map[string]model.PreferenceMap
	projects     map[string]model.ProjectPhaseState
	threads      map[string]model.ThreadPhaseState
}

func newMemData() *memData {
	return &memData{
		facts:        map[string][]model.KnowledgeFact{},
		factVersions: map[string]int64{},
		prefs:        map[string]model.PreferenceMap{},
		projects:     map[string]model.ProjectPhaseState{},
		threads:      map[string]model.ThreadPhaseState{},
	}
}

// clone copies the maps. Stored values are never mutated in place, so the
// slices inside them can be shared.
func (d *memData) clone() *memData {
	c := &memData{
		facts:        maps.Clone(d.facts),
		factVersions: maps.Clone(d.factVersions),
		prefs:        maps.Clone(d.prefs),
		projects:     maps.Clone(d.projects),
		threads:      maps.Clone(d.threads),
	}
	return c
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// Memory is an in-process Provider and TxRunner for tests and the offline CLI.
// Transactions are serialized and applied on success only.
type Memory struct {
	mu   sync.Mutex
	data *memData
}

func NewMemory() *Memory {
	return &Memory{data: newMemData()}
}

func (m *Memory) Knowledge() KnowledgeStore {
	return &memKnowledge{mu: &m.mu, d: func() *memData { return m.data }}
}

func (m *Memory) Preferences() PreferenceStore {
	return &memPreferences{mu: &m.mu, d: func() *memData { return m.data }}
}

func (m *Memory) Projects() ProjectStateStore {
	return &memProjects{mu: &m.mu, d: func() *memData { return m.data }}
}

func (m *Memory) Threads() ThreadStateStore {
	return &memThreads{mu: &m.mu, d: func() *memData { return m.data }}
}

func (m *Memory) WithTx(ctx context.Context, fn func(stores Provider) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.data.clone()
	if err := fn(&memTx{d: staged}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	m.data = staged
	return nil
}

type memTx struct {
	d *memData
}

func (t *memTx) data() *memData { return t.d }

func (t *memTx) Knowledge() KnowledgeStore {
	return &memKnowledge{mu: noopLocker{}, d: t.data}
}

func (t *memTx) Preferences() PreferenceStore {
	return &memPreferences{mu: noopLocker{}, d: t.data}
}

func (t *memTx) Projects() ProjectStateStore {
	return &memProjects{mu: noopLocker{}, d: t.data}
}

func (t *memTx) Threads() ThreadStateStore {
	return &memThreads{mu: noopLocker{}, d: t.data}
}

type memKnowledge struct {
	mu sync.Locker
	d  func() *memData
}

func (s *memKnowledge) List(_ context.Context, projectID string) ([]model.KnowledgeFact, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.d()
	return slices.Clone(d.facts[projectID]), d.factVersions[projectID], nil
}

func (s *memKnowledge) Append(_ context.Context, projectID string, expectedVersion int64, facts []model.KnowledgeFact) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.d()

	if actual := d.factVersions[projectID]; actual != expectedVersion {
		return 0, &model.StaleKnowledgeAppendError{ProjectID: projectID, Expected: expectedVersion, Actual: actual}
	}
	for _, f := range facts {
		for _, existing := range d.facts[projectID] {
			if existing.ID == f.ID {
				return 0, fmt.Errorf("inserting fact %d: duplicate id", f.ID)
			}
		}
	}

	all := append(slices.Clone(d.facts[projectID]), facts...)
	for i := range all {
		all[i].ProjectID = projectID
	}
	slices.SortStableFunc(all, func(a, b model.KnowledgeFact) int {
		return cmp.Or(a.ExtractedAt.Compare(b.ExtractedAt), cmp.Compare(a.ID, b.ID))
	})
	d.facts[projectID] = all
	d.factVersions[projectID] = expectedVersion + 1
	return expectedVersion + 1, nil
}

type memPreferences struct {
	mu sync.Locker
	d  func() *memData
}

func (s *memPreferences) Get(_ context.Context, projectID string) (model.PreferenceMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs, ok := s.d().prefs[projectID]
	if !ok {
		return model.PreferenceMap{ProjectID: projectID}, nil
	}
	return copyPrefs(prefs), nil
}

func (s *memPreferences) Replace(_ context.Context, prefs model.PreferenceMap, expectedVersion int64) (model.PreferenceMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.d()
	if d.prefs[prefs.ProjectID].Version != expectedVersion {
		return model.PreferenceMap{}, fmt.Errorf("preference_maps %s at version %d: %w", prefs.ProjectID, expectedVersion, ErrVersionConflict)
	}
	prefs = copyPrefs(prefs)
	prefs.Version = expectedVersion + 1
	d.prefs[prefs.ProjectID] = prefs
	return copyPrefs(prefs), nil
}

func copyPrefs(p model.PreferenceMap) model.PreferenceMap {
	p.Terminology = maps.Clone(p.Terminology)
	p.Style = maps.Clone(p.Style)
	p.Themes = slices.Clone(p.Themes)
	return p
}

type memProjects struct {
	mu sync.Locker
	d  func() *memData
}

func (s *memProjects) Get(_ context.Context, projectID string) (*model.ProjectPhaseState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.d().projects[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	st.Evidence = slices.Clone(st.Evidence)
	return &st, nil
}

func (s *memProjects) Save(_ context.Context, state model.ProjectPhaseState, expectedVersion int64) (model.ProjectPhaseState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.d()
	if d.projects[state.ProjectID].Version != expectedVersion {
		return model.ProjectPhaseState{}, fmt.Errorf("project_phase_states %s at version %d: %w", state.ProjectID, expectedVersion, ErrVersionConflict)
	}
	state.Version = expectedVersion + 1
	state.Evidence = slices.Clone(state.Evidence)
	d.projects[state.ProjectID] = state
	return state, nil
}

type memThreads struct {
	mu sync.Locker
	d  func() *memData
}

func (s *memThreads) Get(_ context.Context, threadID string) (*model.ThreadPhaseState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.d().threads[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	st = copyThread(st)
	return &st, nil
}

func (s *memThreads) Save(_ context.Context, state model.ThreadPhaseState, expectedVersion int64) (model.ThreadPhaseState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.d()
	if d.threads[state.ThreadID].Version != expectedVersion {
		return model.ThreadPhaseState{}, fmt.Errorf("thread_phase_states %s at version %d: %w", state.ThreadID, expectedVersion, ErrVersionConflict)
	}
	state = copyThread(state)
	state.Version = expectedVersion + 1
	d.threads[state.ThreadID] = state
	return copyThread(state), nil
}

func (s *memThreads) ListByProject(_ context.Context, projectID string) ([]model.ThreadPhaseState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ThreadPhaseState
	for _, st := range s.d().threads {
		if st.ProjectID == projectID {
			out = append(out, copyThread(st))
		}
	}
	slices.SortFunc(out, func(a, b model.ThreadPhaseState) int { return cmp.Compare(a.ThreadID, b.ThreadID) })
	return out, nil
}

func copyThread(st model.ThreadPhaseState) model.ThreadPhaseState {
	st.Evidence = slices.Clone(st.Evidence)
	st.OpenQuestions = slices.Clone(st.OpenQuestions)
	return st
}
