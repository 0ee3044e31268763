package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) ListLayouts(ctx context.Context) ([]Layout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.owner_id, u.name, l.title, l.description, l.status, l.created_at, l.updated_at
		FROM layouts l
		JOIN users u ON u.id = l.owner_id
		ORDER BY l.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list layouts: %w", err)
	}
	defer rows.Close()

	items := make([]Layout, 0)
	for rows.Next() {
		var item Layout
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.OwnerName, &item.Title, &item.Description, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan layout: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate layouts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetLayout(ctx context.Context, layoutID string) (Layout, error) {
	var item Layout
	err := s.db.QueryRowContext(ctx, `
		SELECT l.id, l.owner_id, u.name, l.title, l.description, l.status, l.created_at, l.updated_at
		FROM layouts l
		JOIN users u ON u.id = l.owner_id
		WHERE l.id=$1
	`, layoutID).Scan(&item.ID, &item.OwnerID, &item.OwnerName, &item.Title, &item.Description, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Layout{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertLayout(ctx context.Context, layout Layout) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO layouts (id, owner_id, title, description, status)
		VALUES ($1, $2, $3, $4, $5)
	`, layout.ID, layout.OwnerID, layout.Title, layout.Description, layout.Status)
	if err != nil {
		return fmt.Errorf("insert layout: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLayout(ctx context.Context, layoutID, title, description, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE layouts
		SET title=$2, description=$3, status=$4, updated_at=NOW()
		WHERE id=$1
	`, layoutID, title, description, status)
	if err != nil {
		return false, fmt.Errorf("update layout: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update layout rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteLayout(ctx context.Context, layoutID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM layouts WHERE id=$1`, layoutID)
	if err != nil {
		return false, fmt.Errorf("delete layout: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete layout rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListParts(ctx context.Context, layoutID string) ([]Part, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.layout_id, p.start_percent, p.end_percent, p.status, COALESCE(p.claimed_by, ''), COALESCE(u.name, ''), p.created_at, p.updated_at
		FROM parts p
		LEFT JOIN users u ON u.id = p.claimed_by
		WHERE p.layout_id=$1
		ORDER BY p.start_percent ASC
	`, layoutID)
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	defer rows.Close()

	items := make([]Part, 0)
	for rows.Next() {
		var item Part
		if err := rows.Scan(&item.ID, &item.LayoutID, &item.StartPercent, &item.EndPercent, &item.Status, &item.ClaimedBy, &item.ClaimedName, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan part: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertPart(ctx context.Context, part Part) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parts (id, layout_id, start_percent, end_percent, status)
		VALUES ($1, $2, $3, $4, $5)
	`, part.ID, part.LayoutID, part.StartPercent, part.EndPercent, part.Status)
	if err != nil {
		return fmt.Errorf("insert part: %w", err)
	}
	return nil
}

// ClaimPart assigns an OPEN part to a user. Returns false when the part is
// gone or already claimed.
func (s *PostgresStore) ClaimPart(ctx context.Context, partID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE parts
		SET status='CLAIMED', claimed_by=$2, updated_at=NOW()
		WHERE id=$1 AND status='OPEN'
	`, partID, userID)
	if err != nil {
		return false, fmt.Errorf("claim part: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim part rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UpdatePartStatus(ctx context.Context, partID, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE parts SET status=$2, updated_at=NOW() WHERE id=$1
	`, partID, status)
	if err != nil {
		return false, fmt.Errorf("update part status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update part status rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeletePart(ctx context.Context, partID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM parts WHERE id=$1`, partID)
	if err != nil {
		return false, fmt.Errorf("delete part: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete part rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) GetPart(ctx context.Context, partID string) (Part, error) {
	var item Part
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.layout_id, p.start_percent, p.end_percent, p.status, COALESCE(p.claimed_by, ''), COALESCE(u.name, ''), p.created_at, p.updated_at
		FROM parts p
		LEFT JOIN users u ON u.id = p.claimed_by
		WHERE p.id=$1
	`, partID).Scan(&item.ID, &item.LayoutID, &item.StartPercent, &item.EndPercent, &item.Status, &item.ClaimedBy, &item.ClaimedName, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Part{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, layoutID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.layout_id, m.author_id, u.name, m.body, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.author_id
		WHERE m.layout_id=$1
		ORDER BY m.created_at ASC
		LIMIT $2
	`, layoutID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var item Message
		if err := rows.Scan(&item.ID, &item.LayoutID, &item.AuthorID, &item.AuthorName, &item.Body, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, message Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, layout_id, author_id, body)
		VALUES ($1, $2, $3, $4)
	`, message.ID, message.LayoutID, message.AuthorID, message.Body)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}
