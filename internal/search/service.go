package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexLevel indexes a level (fire-and-forget to Meilisearch).
func (s *Service) IndexLevel(lv LevelRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexLevel(lv); err != nil {
			log.Printf("search: index level %s: %v", lv.ID, err)
		}
	}()
}

// IndexLayout indexes a layout (fire-and-forget to Meilisearch).
func (s *Service) IndexLayout(l LayoutRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexLayout(l); err != nil {
			log.Printf("search: index layout %s: %v", l.ID, err)
		}
	}()
}

// DeleteLevel removes a level from the search index (fire-and-forget).
func (s *Service) DeleteLevel(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteLevel(id); err != nil {
			log.Printf("search: delete level %s: %v", id, err)
		}
	}()
}

// DeleteLayout removes a layout from the search index (fire-and-forget).
func (s *Service) DeleteLayout(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteLayout(id); err != nil {
			log.Printf("search: delete layout %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	levels, layouts, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(levels) > 0 {
		if err := s.meili.IndexLevels(levels); err != nil {
			log.Printf("search: reindex levels: %v", err)
		}
	}
	if len(layouts) > 0 {
		if err := s.meili.IndexLayouts(layouts); err != nil {
			log.Printf("search: reindex layouts: %v", err)
		}
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
