package export

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ListSource loads the levels of a ranked list, either current or historic.
type ListSource interface {
	CurrentLevels(ctx context.Context, list string) ([]Level, error)
	HistoricLevels(ctx context.Context, list string, at time.Time) ([]Level, error)
}

// Service provides list export functionality.
type Service struct {
	source ListSource
}

// NewService creates a new export service.
func NewService(source ListSource) *Service {
	return &Service{source: source}
}

// Export renders the requested list state as a PDF.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	var (
		levels []Level
		err    error
	)
	if req.At != nil {
		levels, err = s.source.HistoricLevels(ctx, req.List, *req.At)
	} else {
		levels, err = s.source.CurrentLevels(ctx, req.List)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	title := displayTitle(req.List)
	html, err := RenderListHTML(TemplateData{
		Title:       title,
		List:        req.List,
		AsOf:        req.At,
		GeneratedAt: time.Now().UTC(),
		Levels:      levels,
	})
	if err != nil {
		return nil, fmt.Errorf("render list: %w", err)
	}

	return exportPDF(html, title)
}

// displayTitle turns a list key like "main-list" into "Main List".
func displayTitle(list string) string {
	words := strings.Split(list, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
