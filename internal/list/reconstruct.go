package list

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"demonboard/api/internal/store"
)

// Reconstruct answers "what did this list look like at time at?" by loading
// the current snapshot plus every changelog entry newer than at, then undoing
// the entries newest-first. Snapshot and changelog are read in one
// repeatable-read transaction so a concurrent reorder cannot tear the view.
func (s *Service) Reconstruct(ctx context.Context, list string, at time.Time) ([]store.Level, error) {
	started := time.Now()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin reconstruct tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+levelColumns+`
		FROM levels
		WHERE list = $1
		ORDER BY placement ASC
	`, list)
	if err != nil {
		return nil, fmt.Errorf("load current list: %w", err)
	}
	current, err := collectLevels(rows)
	if err != nil {
		return nil, err
	}

	entries, err := changesSince(ctx, tx, list, at)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reconstruct read: %w", err)
	}

	result := replayBackward(current, entries)
	reconstructDuration.Observe(time.Since(started).Seconds())
	reconstructReplayedEntries.Observe(float64(len(entries)))
	return result, nil
}

// changesSince returns the entries newer than at, newest first — the undo
// order for replayBackward.
func changesSince(ctx context.Context, tx *sql.Tx, list string, at time.Time) ([]store.ListChange, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, type, list, level_id, level_name, description, old_placement, new_placement, level_snapshot, created_at
		FROM list_changes
		WHERE list = $1 AND created_at > $2
		ORDER BY created_at DESC, id DESC
	`, list, at)
	if err != nil {
		return nil, fmt.Errorf("load changelog: %w", err)
	}
	defer rows.Close()

	entries := make([]store.ListChange, 0)
	for rows.Next() {
		var entry store.ListChange
		var snapshot []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.Type,
			&entry.List,
			&entry.LevelID,
			&entry.LevelName,
			&entry.Description,
			&entry.OldPlacement,
			&entry.NewPlacement,
			&snapshot,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan changelog entry: %w", err)
		}
		entry.LevelSnapshot = snapshot
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changelog: %w", err)
	}
	return entries, nil
}

// replayBackward applies the inverse of each entry, in the given
// (newest-first) order, to the current snapshot. Every inverse keeps the
// working list dense, so undoing a complete changelog reproduces past states
// exactly. The final renumber only matters for entries that predate full
// snapshots.
func replayBackward(current []store.Level, entries []store.ListChange) []store.Level {
	working := make([]store.Level, len(current))
	copy(working, current)

	for _, entry := range entries {
		switch entry.Type {
		case store.ChangeAdd:
			// The level did not exist yet: take it out and close the gap.
			working = takeOut(working, entry.LevelID)
		case store.ChangeMove:
			if entry.OldPlacement == nil {
				continue
			}
			item, rest, ok := extract(working, entry.LevelID)
			if !ok {
				continue
			}
			// Close the gap at the post-move placement before reinserting at
			// the pre-move one; putAt reopens it on the other side.
			for i := range rest {
				if rest[i].Placement > item.Placement {
					rest[i].Placement--
				}
			}
			working = putAt(rest, item, *entry.OldPlacement)
		case store.ChangeRemove:
			if entry.OldPlacement == nil {
				continue
			}
			working = putAt(working, resurrect(entry), *entry.OldPlacement)
		}
	}

	sort.SliceStable(working, func(i, j int) bool {
		return working[i].Placement < working[j].Placement
	})
	for i := range working {
		working[i].Placement = i + 1
	}
	return working
}

// takeOut removes the level with the given id and decrements every placement
// below it. Unknown ids leave the list untouched.
func takeOut(levels []store.Level, levelID string) []store.Level {
	item, rest, ok := extract(levels, levelID)
	if !ok {
		return levels
	}
	for i := range rest {
		if rest[i].Placement > item.Placement {
			rest[i].Placement--
		}
	}
	return rest
}

// putAt inserts item at the given placement, incrementing everything at or
// below it.
func putAt(levels []store.Level, item store.Level, placement int) []store.Level {
	for i := range levels {
		if levels[i].Placement >= placement {
			levels[i].Placement++
		}
	}
	item.Placement = placement
	return append(levels, item)
}

func extract(levels []store.Level, levelID string) (store.Level, []store.Level, bool) {
	for i, level := range levels {
		if level.ID == levelID {
			rest := make([]store.Level, 0, len(levels)-1)
			rest = append(rest, levels[:i]...)
			rest = append(rest, levels[i+1:]...)
			return level, rest, true
		}
	}
	return store.Level{}, levels, false
}

// resurrect rebuilds a removed level from its changelog entry. Entries
// written since snapshotting carry the full row; older ones yield a
// name-and-placement placeholder marked Historic.
func resurrect(entry store.ListChange) store.Level {
	if len(entry.LevelSnapshot) > 0 {
		var level store.Level
		if err := json.Unmarshal(entry.LevelSnapshot, &level); err == nil && level.ID != "" {
			return level
		}
	}
	return store.Level{
		ID:        entry.LevelID,
		List:      entry.List,
		Name:      entry.LevelName,
		Placement: derefOr(entry.OldPlacement, 0),
		Historic:  true,
	}
}

func derefOr(value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	return *value
}
