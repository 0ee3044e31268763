package app

import (
	"context"
	"time"

	"demonboard/api/internal/export"
	"demonboard/api/internal/list"
	"demonboard/api/internal/store"
)

// exportSource adapts the store and the list engine to the export renderer.
type exportSource struct {
	store *store.PostgresStore
	lists *list.Service
}

// NewExportSource builds the level source the PDF exporter reads from.
func NewExportSource(st *store.PostgresStore, lists *list.Service) export.ListSource {
	return exportSource{store: st, lists: lists}
}

func (s exportSource) CurrentLevels(ctx context.Context, listKey string) ([]export.Level, error) {
	levels, err := s.store.ListLevels(ctx, listKey)
	if err != nil {
		return nil, err
	}
	return exportLevels(levels), nil
}

func (s exportSource) HistoricLevels(ctx context.Context, listKey string, at time.Time) ([]export.Level, error) {
	levels, err := s.lists.Reconstruct(ctx, listKey, at)
	if err != nil {
		return nil, err
	}
	return exportLevels(levels), nil
}

func exportLevels(levels []store.Level) []export.Level {
	out := make([]export.Level, 0, len(levels))
	for _, l := range levels {
		out = append(out, export.Level{
			Placement: l.Placement,
			Name:      l.Name,
			Creator:   l.Creator,
			Verifier:  l.Verifier,
			VideoURL:  l.VideoURL,
			Historic:  l.Historic,
		})
	}
	return out
}
