package service

import (
	"log/slog"

	"basegraph.app/editorial/common/id"
	"basegraph.app/editorial/internal/knowledge"
	"basegraph.app/editorial/internal/persona"
	"basegraph.app/editorial/internal/queue"
	"basegraph.app/editorial/internal/store"
)

type Services struct {
	stores    store.Provider
	catalog   *persona.Catalog
	knowledge *knowledge.Service
	ids       id.Generator
	dedupe    Deduper
	producer  queue.Producer
}

func NewServices(stores store.Provider, catalog *persona.Catalog, knowledge *knowledge.Service, ids id.Generator, dedupe Deduper, producer queue.Producer) *Services {
	return &Services{
		stores:    stores,
		catalog:   catalog,
		knowledge: knowledge,
		ids:       ids,
		dedupe:    dedupe,
		producer:  producer,
	}
}

func (s *Services) Editorial() EditorialService {
	return NewEditorialService(s.stores, s.catalog, s.knowledge)
}

func (s *Services) EventIngest() EventIngestService {
	return NewEventIngestService(s.ids, s.dedupe, s.producer, slog.Default())
}
