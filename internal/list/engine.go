// Package list maintains the ranked demon lists: placement reordering,
// the append-only changelog, and historic reconstruction.
package list

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"demonboard/api/internal/store"
	"demonboard/api/internal/util"

	"github.com/jackc/pgx/v5/pgconn"
)

// MainList is the primary ranking; every other list key is a side list.
const MainList = "main-list"

var (
	ErrNotFound         = errors.New("level not found")
	ErrConflict         = errors.New("level already ranked")
	ErrInvalidPlacement = errors.New("invalid placement")
)

// LevelData carries the caller-supplied fields of a new level.
type LevelData struct {
	Name        string
	Creator     string
	Verifier    string
	ExternalID  int64
	VideoURL    string
	Description string
}

// Service executes reorder operations against a single injected database
// handle. Each operation is one transaction; an advisory lock on the list key
// serializes concurrent reorders of the same list and releases with the
// transaction on every exit path.
type Service struct {
	db      *sql.DB
	mainCap int
	sideCap int
}

func New(db *sql.DB, mainCap, sideCap int) *Service {
	return &Service{db: db, mainCap: mainCap, sideCap: sideCap}
}

func (s *Service) capacity(list string) int {
	if list == MainList {
		return s.mainCap
	}
	return s.sideCap
}

// Insert places a new level at the given placement, shifting every level at or
// below it down by one. Placement must be in [1, N+1] for a list of N levels.
// The second return value lists the IDs of any levels dropped by capacity
// truncation so callers can purge them from derived indexes.
func (s *Service) Insert(ctx context.Context, list string, data LevelData, placement int) (level store.Level, truncated []string, err error) {
	if placement < 1 {
		return store.Level{}, nil, ErrInvalidPlacement
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Level{}, nil, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	defer func() {
		if err != nil {
			reorderFailuresTotal.WithLabelValues("insert", list).Inc()
		}
	}()

	if err := lockList(ctx, tx, list); err != nil {
		return store.Level{}, nil, err
	}

	count, err := countLevels(ctx, tx, list)
	if err != nil {
		return store.Level{}, nil, err
	}
	if placement > count+1 {
		return store.Level{}, nil, ErrInvalidPlacement
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE levels SET placement = placement + 1, updated_at = NOW()
		WHERE list = $1 AND placement >= $2
	`, list, placement); err != nil {
		return store.Level{}, nil, fmt.Errorf("shift placements for insert: %w", err)
	}

	level = store.Level{
		ID:          util.NewID("lvl"),
		List:        list,
		Placement:   placement,
		Name:        data.Name,
		Creator:     data.Creator,
		Verifier:    data.Verifier,
		ExternalID:  data.ExternalID,
		VideoURL:    data.VideoURL,
		Description: data.Description,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO levels (id, list, placement, name, creator, verifier, external_id, video_url, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, level.ID, level.List, level.Placement, level.Name, level.Creator, level.Verifier, level.ExternalID, level.VideoURL, level.Description).
		Scan(&level.CreatedAt, &level.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.Level{}, nil, ErrConflict
		}
		return store.Level{}, nil, fmt.Errorf("insert level: %w", err)
	}

	if err := appendChange(ctx, tx, store.ListChange{
		Type:         store.ChangeAdd,
		List:         list,
		LevelID:      level.ID,
		LevelName:    level.Name,
		NewPlacement: &placement,
		Description:  fmt.Sprintf("%q placed at #%d", level.Name, placement),
	}); err != nil {
		return store.Level{}, nil, err
	}

	truncated, err = s.truncateToCapacity(ctx, tx, list)
	if err != nil {
		return store.Level{}, nil, err
	}

	if err := tx.Commit(); err != nil {
		return store.Level{}, nil, fmt.Errorf("commit insert: %w", err)
	}
	reorderOpsTotal.WithLabelValues("insert", list).Inc()
	return level, truncated, nil
}

// Move reassigns a level's placement, shifting the interval between the old
// and new placements by one. A move to the current placement is a no-op and
// produces no changelog entry. The second return value lists the IDs of any
// levels dropped by capacity truncation.
func (s *Service) Move(ctx context.Context, levelID string, newPlacement int) (level store.Level, truncated []string, err error) {
	if newPlacement < 1 {
		return store.Level{}, nil, ErrInvalidPlacement
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Level{}, nil, fmt.Errorf("begin move tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var list string
	defer func() {
		if err != nil {
			reorderFailuresTotal.WithLabelValues("move", list).Inc()
		}
	}()

	list, err = levelList(ctx, tx, levelID)
	if err != nil {
		return store.Level{}, nil, err
	}
	if err := lockList(ctx, tx, list); err != nil {
		return store.Level{}, nil, err
	}

	// Re-read under the lock; a concurrent reorder may have shifted the row
	// between the first lookup and lock acquisition.
	level, err = levelForUpdate(ctx, tx, levelID)
	if err != nil {
		return store.Level{}, nil, err
	}
	count, err := countLevels(ctx, tx, list)
	if err != nil {
		return store.Level{}, nil, err
	}
	if newPlacement > count {
		return store.Level{}, nil, ErrInvalidPlacement
	}

	old := level.Placement
	switch {
	case old > newPlacement:
		if _, err := tx.ExecContext(ctx, `
			UPDATE levels SET placement = placement + 1, updated_at = NOW()
			WHERE list = $1 AND placement >= $2 AND placement < $3
		`, list, newPlacement, old); err != nil {
			return store.Level{}, nil, fmt.Errorf("shift placements up for move: %w", err)
		}
	case old < newPlacement:
		if _, err := tx.ExecContext(ctx, `
			UPDATE levels SET placement = placement - 1, updated_at = NOW()
			WHERE list = $1 AND placement > $2 AND placement <= $3
		`, list, old, newPlacement); err != nil {
			return store.Level{}, nil, fmt.Errorf("shift placements down for move: %w", err)
		}
	}

	if old != newPlacement {
		if _, err := tx.ExecContext(ctx, `
			UPDATE levels SET placement = $2, updated_at = NOW() WHERE id = $1
		`, levelID, newPlacement); err != nil {
			return store.Level{}, nil, fmt.Errorf("set moved placement: %w", err)
		}
		if err := appendChange(ctx, tx, store.ListChange{
			Type:         store.ChangeMove,
			List:         list,
			LevelID:      level.ID,
			LevelName:    level.Name,
			OldPlacement: &old,
			NewPlacement: &newPlacement,
			Description:  fmt.Sprintf("%q moved from #%d to #%d", level.Name, old, newPlacement),
		}); err != nil {
			return store.Level{}, nil, err
		}
	}

	truncated, err = s.truncateToCapacity(ctx, tx, list)
	if err != nil {
		return store.Level{}, nil, err
	}

	if err := tx.Commit(); err != nil {
		return store.Level{}, nil, fmt.Errorf("commit move: %w", err)
	}
	reorderOpsTotal.WithLabelValues("move", list).Inc()
	level.Placement = newPlacement
	return level, truncated, nil
}

// Remove deletes a level and closes the placement gap. The changelog entry is
// written first and carries a full JSON snapshot of the row, so reconstruction
// can resurrect it losslessly.
func (s *Service) Remove(ctx context.Context, levelID string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var list string
	defer func() {
		if err != nil {
			reorderFailuresTotal.WithLabelValues("remove", list).Inc()
		}
	}()

	list, err = levelList(ctx, tx, levelID)
	if err != nil {
		return err
	}
	if err := lockList(ctx, tx, list); err != nil {
		return err
	}

	level, err := levelForUpdate(ctx, tx, levelID)
	if err != nil {
		return err
	}

	if err := removeLevel(ctx, tx, level, fmt.Sprintf("%q removed from #%d", level.Name, level.Placement)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove: %w", err)
	}
	reorderOpsTotal.WithLabelValues("remove", list).Inc()
	return nil
}

// removeLevel appends the REMOVE changelog entry, deletes the level's records
// and the level itself, and decrements every placement below it. Callers hold
// the list lock.
func removeLevel(ctx context.Context, tx *sql.Tx, level store.Level, description string) error {
	snapshot, err := json.Marshal(level)
	if err != nil {
		return fmt.Errorf("snapshot level %s: %w", level.ID, err)
	}
	old := level.Placement
	if err := appendChange(ctx, tx, store.ListChange{
		Type:          store.ChangeRemove,
		List:          level.List,
		LevelID:       level.ID,
		LevelName:     level.Name,
		OldPlacement:  &old,
		Description:   description,
		LevelSnapshot: snapshot,
	}); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE level_id = $1`, level.ID); err != nil {
		return fmt.Errorf("delete level records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM levels WHERE id = $1`, level.ID); err != nil {
		return fmt.Errorf("delete level: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE levels SET placement = placement - 1, updated_at = NOW()
		WHERE list = $1 AND placement > $2
	`, level.List, level.Placement); err != nil {
		return fmt.Errorf("close placement gap: %w", err)
	}
	return nil
}

// truncateToCapacity deletes every level pushed past the list's capacity,
// logging each deletion as a REMOVE entry so reconstruction can recover it.
// It returns the IDs of the deleted levels.
func (s *Service) truncateToCapacity(ctx context.Context, tx *sql.Tx, list string) ([]string, error) {
	limit := s.capacity(list)
	if limit <= 0 {
		return nil, nil
	}
	rows, err := tx.QueryContext(ctx, `
		SELECT `+levelColumns+`
		FROM levels
		WHERE list = $1 AND placement > $2
		ORDER BY placement DESC
	`, list, limit)
	if err != nil {
		return nil, fmt.Errorf("find overflow levels: %w", err)
	}
	overflow, err := collectLevels(rows)
	if err != nil {
		return nil, err
	}

	// Highest placement first so each delete leaves no gap behind it.
	removed := make([]string, 0, len(overflow))
	for _, level := range overflow {
		if err := removeLevel(ctx, tx, level, fmt.Sprintf("%q fell past #%d", level.Name, limit)); err != nil {
			return nil, err
		}
		capacityTruncationsTotal.Inc()
		removed = append(removed, level.ID)
	}
	return removed, nil
}

func appendChange(ctx context.Context, tx *sql.Tx, change store.ListChange) error {
	var snapshot any
	if len(change.LevelSnapshot) > 0 {
		snapshot = string(change.LevelSnapshot)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO list_changes (type, list, level_id, level_name, description, old_placement, new_placement, level_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
	`, change.Type, change.List, change.LevelID, change.LevelName, change.Description, change.OldPlacement, change.NewPlacement, snapshot); err != nil {
		return fmt.Errorf("append %s changelog entry: %w", change.Type, err)
	}
	return nil
}

func lockList(ctx context.Context, tx *sql.Tx, list string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, list); err != nil {
		return fmt.Errorf("lock list %s: %w", list, err)
	}
	return nil
}

func countLevels(ctx context.Context, tx *sql.Tx, list string) (int, error) {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM levels WHERE list = $1`, list).Scan(&count); err != nil {
		return 0, fmt.Errorf("count levels: %w", err)
	}
	return count, nil
}

func levelList(ctx context.Context, tx *sql.Tx, levelID string) (string, error) {
	var list string
	err := tx.QueryRowContext(ctx, `SELECT list FROM levels WHERE id = $1`, levelID).Scan(&list)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup level list: %w", err)
	}
	return list, nil
}

const levelColumns = `id, list, placement, name, creator, verifier, external_id, video_url, description, historic, created_at, updated_at`

func levelForUpdate(ctx context.Context, tx *sql.Tx, levelID string) (store.Level, error) {
	var item store.Level
	err := tx.QueryRowContext(ctx, `
		SELECT `+levelColumns+`
		FROM levels
		WHERE id = $1
	`, levelID).Scan(
		&item.ID,
		&item.List,
		&item.Placement,
		&item.Name,
		&item.Creator,
		&item.Verifier,
		&item.ExternalID,
		&item.VideoURL,
		&item.Description,
		&item.Historic,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Level{}, ErrNotFound
	}
	if err != nil {
		return store.Level{}, fmt.Errorf("load level: %w", err)
	}
	return item, nil
}

func collectLevels(rows *sql.Rows) ([]store.Level, error) {
	defer rows.Close()
	items := make([]store.Level, 0)
	for rows.Next() {
		var item store.Level
		if err := rows.Scan(
			&item.ID,
			&item.List,
			&item.Placement,
			&item.Name,
			&item.Creator,
			&item.Verifier,
			&item.ExternalID,
			&item.VideoURL,
			&item.Description,
			&item.Historic,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate levels: %w", err)
	}
	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
