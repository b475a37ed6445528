package store

import (
	"context"
	"errors"
	"fmt"

	"basegraph.app/editorial/core/db"
	"basegraph.app/editorial/internal/model"
	"github.com/jackc/pgx/v5"
)

type knowledgeStore struct {
	q db.Querier
}

func (s *knowledgeStore) version(ctx context.Context, projectID string) (int64, error) {
	var v int64
	err := s.q.QueryRow(ctx,
		`SELECT facts_version FROM knowledge_heads WHERE project_id = $1`, projectID,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading facts version: %w", err)
	}
	return v, nil
}

func (s *knowledgeStore) List(ctx context.Context, projectID string) ([]model.KnowledgeFact, int64, error) {
	version, err := s.version(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.q.Query(ctx, `
		SELECT id, project_id, question, answer, source_thread_id, extracted_at, confidence
		FROM knowledge_facts
		WHERE project_id = $1 AND facts_version <= $2
		ORDER BY extracted_at, id`, projectID, version)
	if err != nil {
		return nil, 0, fmt.Errorf("listing facts: %w", err)
	}
	defer rows.Close()

	var facts []model.KnowledgeFact
	for rows.Next() {
		var f model.KnowledgeFact
		var conf string
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Question, &f.Answer, &f.SourceThreadID, &f.ExtractedAt, &conf); err != nil {
			return nil, 0, fmt.Errorf("scanning fact: %w", err)
		}
		f.Confidence = model.Confidence(conf)
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating facts: %w", err)
	}
	return facts, version, nil
}

func (s *knowledgeStore) Append(ctx context.Context, projectID string, expectedVersion int64, facts []model.KnowledgeFact) (int64, error) {
	if _, err := s.q.Exec(ctx,
		`INSERT INTO knowledge_heads (project_id, facts_version) VALUES ($1, 0) ON CONFLICT (project_id) DO NOTHING`,
		projectID,
	); err != nil {
		return 0, fmt.Errorf("ensuring knowledge head: %w", err)
	}

	var next int64
	err := s.q.QueryRow(ctx, `
		UPDATE knowledge_heads SET facts_version = facts_version + 1, updated_at = now()
		WHERE project_id = $1 AND facts_version = $2
		RETURNING facts_version`, projectID, expectedVersion,
	).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		actual, verr := s.version(ctx, projectID)
		if verr != nil {
			return 0, verr
		}
		return 0, &model.StaleKnowledgeAppendError{ProjectID: projectID, Expected: expectedVersion, Actual: actual}
	}
	if err != nil {
		return 0, fmt.Errorf("advancing facts version: %w", err)
	}

	for _, f := range facts {
		if _, err := s.q.Exec(ctx, `
			INSERT INTO knowledge_facts (id, project_id, question, answer, source_thread_id, extracted_at, confidence, facts_version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			f.ID, projectID, f.Question, f.Answer, f.SourceThreadID, f.ExtractedAt, string(f.Confidence), next,
		); err != nil {
			return 0, fmt.Errorf("inserting fact %d: %w", f.ID, err)
		}
	}
	return next, nil
}
