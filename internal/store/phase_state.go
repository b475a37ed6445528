package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"basegraph.app/editorial/core/db"
	"basegraph.app/editorial/internal/model"
	"github.com/jackc/pgx/v5"
)

type projectStateStore struct {
	q db.Querier
}

func (s *projectStateStore) Get(ctx context.Context, projectID string) (*model.ProjectPhaseState, error) {
	var (
		version int64
		doc     []byte
	)
	err := s.q.QueryRow(ctx,
		`SELECT version, document FROM project_phase_states WHERE project_id = $1`, projectID,
	).Scan(&version, &doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading project phase: %w", err)
	}

	var st model.ProjectPhaseState
	if err := json.Unmarshal(doc, &st); err != nil {
		return nil, fmt.Errorf("decoding project phase: %w", err)
	}
	st.Version = version
	return &st, nil
}

func (s *projectStateStore) Save(ctx context.Context, state model.ProjectPhaseState, expectedVersion int64) (model.ProjectPhaseState, error) {
	state.Version = expectedVersion + 1
	doc, err := json.Marshal(state)
	if err != nil {
		return model.ProjectPhaseState{}, fmt.Errorf("encoding project phase: %w", err)
	}
	if err := casDocument(ctx, s.q, "project_phase_states", "project_id", state.ProjectID, expectedVersion, doc); err != nil {
		return model.ProjectPhaseState{}, err
	}
	return state, nil
}

type threadStateStore struct {
	q db.Querier
}

func (s *threadStateStore) Get(ctx context.Context, threadID string) (*model.ThreadPhaseState, error) {
	var (
		version int64
		doc     []byte
	)
	err := s.q.QueryRow(ctx,
		`SELECT version, document FROM thread_phase_states WHERE thread_id = $1`, threadID,
	).Scan(&version, &doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading thread phase: %w", err)
	}

	var st model.ThreadPhaseState
	if err := json.Unmarshal(doc, &st); err != nil {
		return nil, fmt.Errorf("decoding thread phase: %w", err)
	}
	st.Version = version
	return &st, nil
}

func (s *threadStateStore) Save(ctx context.Context, state model.ThreadPhaseState, expectedVersion int64) (model.ThreadPhaseState, error) {
	state.Version = expectedVersion + 1
	doc, err := json.Marshal(state)
	if err != nil {
		return model.ThreadPhaseState{}, fmt.Errorf("encoding thread phase: %w", err)
	}
	if err := casDocument(ctx, s.q, "thread_phase_states", "thread_id", state.ThreadID, expectedVersion, doc, state.ProjectID); err != nil {
		return model.ThreadPhaseState{}, err
	}
	return state, nil
}

func (s *threadStateStore) ListByProject(ctx context.Context, projectID string) ([]model.ThreadPhaseState, error) {
	rows, err := s.q.Query(ctx,
		`SELECT version, document FROM thread_phase_states WHERE project_id = $1 ORDER BY thread_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing thread phases: %w", err)
	}
	defer rows.Close()

	var out []model.ThreadPhaseState
	for rows.Next() {
		var (
			version int64
			doc     []byte
		)
		if err := rows.Scan(&version, &doc); err != nil {
			return nil, fmt.Errorf("scanning thread phase: %w", err)
		}
		var st model.ThreadPhaseState
		if err := json.Unmarshal(doc, &st); err != nil {
			return nil, fmt.Errorf("decoding thread phase: %w", err)
		}
		st.Version = version
		out = append(out, st)
	}
	return out, rows.Err()
}
