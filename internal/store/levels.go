package store

import (
	"context"
	"fmt"
)

const levelColumns = `id, list, placement, name, creator, verifier, external_id, video_url, description, historic, created_at, updated_at`

func (s *PostgresStore) ListLevels(ctx context.Context, list string) ([]Level, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+levelColumns+`
		FROM levels
		WHERE list=$1
		ORDER BY placement ASC
	`, list)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	defer rows.Close()

	items := make([]Level, 0)
	for rows.Next() {
		var item Level
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

func (s *PostgresStore) GetLevel(ctx context.Context, levelID string) (Level, error) {
	var item Level
	err := s.db.QueryRowContext(ctx, `
		SELECT `+levelColumns+`
		FROM levels
		WHERE id=$1
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
	if err != nil {
		return Level{}, err
	}
	return item, nil
}

// UpdateLevelMeta edits the descriptive fields of a level. Placement is
// never touched here; that is the reorder engine's job.
func (s *PostgresStore) UpdateLevelMeta(ctx context.Context, levelID, name, creator, verifier, videoURL, description string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE levels
		SET name=$2, creator=$3, verifier=$4, video_url=$5, description=$6, updated_at=NOW()
		WHERE id=$1
	`, levelID, name, creator, verifier, videoURL, description)
	if err != nil {
		return false, fmt.Errorf("update level meta: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update level meta rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListChangelog(ctx context.Context, list string, limit int) ([]ListChange, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, list, level_id, level_name, description, old_placement, new_placement, level_snapshot, created_at
		FROM list_changes
		WHERE list=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, list, limit)
	if err != nil {
		return nil, fmt.Errorf("list changelog: %w", err)
	}
	defer rows.Close()

	items := make([]ListChange, 0)
	for rows.Next() {
		var item ListChange
		var snapshot []byte
		if err := rows.Scan(
			&item.ID,
			&item.Type,
			&item.List,
			&item.LevelID,
			&item.LevelName,
			&item.Description,
			&item.OldPlacement,
			&item.NewPlacement,
			&snapshot,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan changelog entry: %w", err)
		}
		item.LevelSnapshot = snapshot
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changelog: %w", err)
	}
	return items, nil
}
