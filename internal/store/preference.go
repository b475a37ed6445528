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

type preferenceStore struct {
	q db.Querier
}

func (s *preferenceStore) Get(ctx context.Context, projectID string) (model.PreferenceMap, error) {
	var (
		version int64
		doc     []byte
	)
	err := s.q.QueryRow(ctx,
		`SELECT version, document FROM preference_maps WHERE project_id = $1`, projectID,
	).Scan(&version, &doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PreferenceMap{ProjectID: projectID}, nil
	}
	if err != nil {
		return model.PreferenceMap{}, fmt.Errorf("reading preferences: %w", err)
	}

	var prefs model.PreferenceMap
	if err := json.Unmarshal(doc, &prefs); err != nil {
		return model.PreferenceMap{}, fmt.Errorf("decoding preferences: %w", err)
	}
	prefs.ProjectID = projectID
	prefs.Version = version
	return prefs, nil
}

func (s *preferenceStore) Replace(ctx context.Context, prefs model.PreferenceMap, expectedVersion int64) (model.PreferenceMap, error) {
	prefs.Version = expectedVersion + 1
	doc, err := json.Marshal(prefs)
	if err != nil {
		return model.PreferenceMap{}, fmt.Errorf("encoding preferences: %w", err)
	}

	if err := casDocument(ctx, s.q, "preference_maps", "project_id", prefs.ProjectID, expectedVersion, doc); err != nil {
		return model.PreferenceMap{}, err
	}
	return prefs, nil
}

// casDocument inserts (expectedVersion 0) or updates a versioned JSONB row and
// returns ErrVersionConflict when the stored version does not match.
func casDocument(ctx context.Context, q db.Querier, table, keyColumn, key string, expectedVersion int64, doc []byte, extra ...string) error {
	var sql string
	args := []any{key, expectedVersion + 1, doc}
	switch {
	case expectedVersion == 0 && len(extra) > 0:
		sql = fmt.Sprintf(`INSERT INTO %s (%s, version, document, project_id) VALUES ($1, $2, $3, $4)
			ON CONFLICT (%s) DO NOTHING`, table, keyColumn, keyColumn)
		args = append(args, extra[0])
	case expectedVersion == 0:
		sql = fmt.Sprintf(`INSERT INTO %s (%s, version, document) VALUES ($1, $2, $3)
			ON CONFLICT (%s) DO NOTHING`, table, keyColumn, keyColumn)
	default:
		sql = fmt.Sprintf(`UPDATE %s SET version = $2, document = $3, updated_at = now()
			WHERE %s = $1 AND version = $4`, table, keyColumn)
		args = append(args, expectedVersion)
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("writing %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s at version %d: %w", table, key, expectedVersion, ErrVersionConflict)
	}
	return nil
}
