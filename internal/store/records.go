package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) ListLevelRecords(ctx context.Context, levelID string, approvedOnly bool) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.level_id, r.user_id, u.name, r.percent, r.video_url, r.status, COALESCE(r.reviewed_by_name, ''), COALESCE(r.review_note, ''), r.created_at, r.updated_at
		FROM records r
		JOIN users u ON u.id = r.user_id
		WHERE r.level_id=$1
		  AND (NOT $2::boolean OR r.status='APPROVED')
		ORDER BY r.percent DESC, r.created_at ASC
	`, levelID, approvedOnly)
	if err != nil {
		return nil, fmt.Errorf("list level records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *PostgresStore) ListUserRecords(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.level_id, r.user_id, u.name, r.percent, r.video_url, r.status, COALESCE(r.reviewed_by_name, ''), COALESCE(r.review_note, ''), r.created_at, r.updated_at
		FROM records r
		JOIN users u ON u.id = r.user_id
		WHERE r.user_id=$1
		ORDER BY r.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *PostgresStore) ListPendingRecords(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.level_id, r.user_id, u.name, r.percent, r.video_url, r.status, COALESCE(r.reviewed_by_name, ''), COALESCE(r.review_note, ''), r.created_at, r.updated_at
		FROM records r
		JOIN users u ON u.id = r.user_id
		WHERE r.status='PENDING'
		ORDER BY r.created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *PostgresStore) GetRecord(ctx context.Context, recordID string) (Record, error) {
	var item Record
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.level_id, r.user_id, u.name, r.percent, r.video_url, r.status, COALESCE(r.reviewed_by_name, ''), COALESCE(r.review_note, ''), r.created_at, r.updated_at
		FROM records r
		JOIN users u ON u.id = r.user_id
		WHERE r.id=$1
	`, recordID).Scan(
		&item.ID,
		&item.LevelID,
		&item.UserID,
		&item.PlayerName,
		&item.Percent,
		&item.VideoURL,
		&item.Status,
		&item.ReviewedBy,
		&item.ReviewNote,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	return item, nil
}

// UpsertRecord creates a submission or replaces the caller's previous one on
// the same level, resetting it to PENDING for re-review.
func (s *PostgresStore) UpsertRecord(ctx context.Context, record Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (id, level_id, user_id, percent, video_url, status)
		VALUES ($1, $2, $3, $4, $5, 'PENDING')
		ON CONFLICT (level_id, user_id)
		DO UPDATE SET percent=EXCLUDED.percent, video_url=EXCLUDED.video_url, status='PENDING',
			reviewed_by_name=NULL, review_note=NULL, updated_at=NOW()
	`, record.ID, record.LevelID, record.UserID, record.Percent, record.VideoURL)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReviewRecord(ctx context.Context, recordID, status, reviewedBy, note string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET status=$2, reviewed_by_name=$3, review_note=NULLIF($4, ''), updated_at=NOW()
		WHERE id=$1 AND status='PENDING'
	`, recordID, status, reviewedBy, note)
	if err != nil {
		return false, fmt.Errorf("review record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("review record rows: %w", err)
	}
	return affected > 0, nil
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	items := make([]Record, 0)
	for rows.Next() {
		var item Record
		if err := rows.Scan(
			&item.ID,
			&item.LevelID,
			&item.UserID,
			&item.PlayerName,
			&item.Percent,
			&item.VideoURL,
			&item.Status,
			&item.ReviewedBy,
			&item.ReviewNote,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return items, nil
}
