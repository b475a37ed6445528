package store

import (
	"context"

	"basegraph.app/editorial/core/db"
)

// Stores provides the Postgres stores over a pool or a transaction.
type Stores struct {
	q db.Querier
}

func NewStores(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Knowledge() KnowledgeStore {
	return &knowledgeStore{q: s.q}
}

func (s *Stores) Preferences() PreferenceStore {
	return &preferenceStore{q: s.q}
}

func (s *Stores) Projects() ProjectStateStore {
	return &projectStateStore{q: s.q}
}

func (s *Stores) Threads() ThreadStateStore {
	return &threadStateStore{q: s.q}
}

// dbTxRunner implements TxRunner using a db.DB connection.
type dbTxRunner struct {
	db *db.DB
}

// NewTxRunner creates a TxRunner backed by the given database.
func NewTxRunner(database *db.DB) TxRunner {
	return &dbTxRunner{db: database}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores Provider) error) error {
	return r.db.WithTx(ctx, func(q db.Querier) error {
		return fn(NewStores(q))
	})
}
