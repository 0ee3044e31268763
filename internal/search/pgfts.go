package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across levels and layouts using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Levels sub-query
	if q.FilterType == "" || q.FilterType == ResultLevel {
		levelWhere := "l.fts @@ " + tsQuery
		if q.FilterList != "" {
			levelWhere += fmt.Sprintf(" AND l.list = $%d", argN)
			args = append(args, q.FilterList)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'level'::text AS type, l.id, l.name AS title,
				ts_headline('english', coalesce(l.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				l.list, l.placement,
				ts_rank(l.fts, %s) AS rank
			FROM levels l
			WHERE %s`, tsQuery, tsQuery, levelWhere))
	}

	// Layouts sub-query
	if q.FilterType == "" || q.FilterType == ResultLayout {
		layoutWhere := "y.fts @@ " + tsQuery
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'layout'::text AS type, y.id, y.title,
				ts_headline('english', coalesce(y.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS list, 0 AS placement,
				ts_rank(y.fts, %s) AS rank
			FROM layouts y
			WHERE %s`, tsQuery, tsQuery, layoutWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	// Count query
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	// Data query
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, list, placement
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.List, &r.Placement); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]LevelRecord, []LayoutRecord, error) {
	levelRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, creator, verifier, coalesce(description, ''), list, placement
		FROM levels
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load levels: %w", err)
	}
	defer levelRows.Close()

	levels := make([]LevelRecord, 0)
	for levelRows.Next() {
		var lv LevelRecord
		if err := levelRows.Scan(&lv.ID, &lv.Name, &lv.Creator, &lv.Verifier, &lv.Description, &lv.List, &lv.Placement); err != nil {
			return nil, nil, fmt.Errorf("scan level: %w", err)
		}
		levels = append(levels, lv)
	}
	if err := levelRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate levels: %w", err)
	}

	layoutRows, err := p.db.QueryContext(ctx, `
		SELECT y.id, y.title, u.name, coalesce(y.description, ''), y.status
		FROM layouts y
		JOIN users u ON u.id = y.owner_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load layouts: %w", err)
	}
	defer layoutRows.Close()

	layouts := make([]LayoutRecord, 0)
	for layoutRows.Next() {
		var l LayoutRecord
		if err := layoutRows.Scan(&l.ID, &l.Name, &l.Author, &l.Description, &l.Status); err != nil {
			return nil, nil, fmt.Errorf("scan layout: %w", err)
		}
		layouts = append(layouts, l)
	}
	if err := layoutRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate layouts: %w", err)
	}

	return levels, layouts, nil
}
