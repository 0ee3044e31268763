package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxLevels  = "demonboard_levels"
	idxLayouts = "demonboard_layouts"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes.
// Returns a client even if the initial connection fails; the health
// loop will reconfigure indexes once Meilisearch comes up.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	// Initial health check
	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		primaryKey string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxLevels,
			primaryKey: "id",
			filterable: []string{"list"},
			searchable: []string{"name", "creator", "verifier", "description"},
		},
		{
			uid:        idxLayouts,
			primaryKey: "id",
			filterable: []string{"status"},
			searchable: []string{"name", "author", "description"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: idx.primaryKey,
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		filterableInterface := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterableInterface[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries both indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxLevels, ResultLevel},
		{idxLayouts, ResultLayout},
	}

	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              ti.uid,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
		}

		if q.FilterList != "" && ti.rtyp == ResultLevel {
			sr.Filter = []string{fmt.Sprintf("list = %q", q.FilterList)}
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxLevels:
		return ResultLevel
	case idxLayouts:
		return ResultLayout
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")

	switch rtyp {
	case ResultLevel:
		r.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
		r.List = decodeString(hit, "list")
		r.Placement = decodeInt(hit, "placement")
	case ResultLayout:
		r.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt(hit meili.Hit, key string) int {
	raw, ok := hit[key]
	if !ok {
		return 0
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// IndexLevel adds or updates a level in the search index.
func (m *Meili) IndexLevel(lv LevelRecord) error {
	_, err := m.client.Index(idxLevels).AddDocuments([]LevelRecord{lv}, nil)
	return err
}

// IndexLayout adds or updates a layout in the search index.
func (m *Meili) IndexLayout(l LayoutRecord) error {
	_, err := m.client.Index(idxLayouts).AddDocuments([]LayoutRecord{l}, nil)
	return err
}

// DeleteLevel removes a level from the search index.
func (m *Meili) DeleteLevel(id string) error {
	_, err := m.client.Index(idxLevels).DeleteDocument(id, nil)
	return err
}

// DeleteLayout removes a layout from the search index.
func (m *Meili) DeleteLayout(id string) error {
	_, err := m.client.Index(idxLayouts).DeleteDocument(id, nil)
	return err
}

// IndexLevels bulk-indexes levels.
func (m *Meili) IndexLevels(levels []LevelRecord) error {
	if len(levels) == 0 {
		return nil
	}
	_, err := m.client.Index(idxLevels).AddDocuments(levels, nil)
	return err
}

// IndexLayouts bulk-indexes layouts.
func (m *Meili) IndexLayouts(layouts []LayoutRecord) error {
	if len(layouts) == 0 {
		return nil
	}
	_, err := m.client.Index(idxLayouts).AddDocuments(layouts, nil)
	return err
}
