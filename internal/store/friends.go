package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) ListFriends(ctx context.Context, userID string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, u.password_hash, u.role, u.created_at, u.updated_at
		FROM friend_requests fr
		JOIN users u ON u.id = CASE WHEN fr.from_id=$1 THEN fr.to_id ELSE fr.from_id END
		WHERE (fr.from_id=$1 OR fr.to_id=$1) AND fr.status='ACCEPTED'
		ORDER BY u.name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var item User
		if err := rows.Scan(&item.ID, &item.Name, &item.Email, &item.PasswordHash, &item.Role, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friends: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListFriendRequests(ctx context.Context, userID string) ([]FriendRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fr.id, fr.from_id, fu.name, fr.to_id, tu.name, fr.status, fr.created_at, fr.updated_at
		FROM friend_requests fr
		JOIN users fu ON fu.id = fr.from_id
		JOIN users tu ON tu.id = fr.to_id
		WHERE fr.to_id=$1 AND fr.status='PENDING'
		ORDER BY fr.created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	defer rows.Close()

	items := make([]FriendRequest, 0)
	for rows.Next() {
		var item FriendRequest
		if err := rows.Scan(&item.ID, &item.FromID, &item.FromName, &item.ToID, &item.ToName, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend requests: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetFriendRequest(ctx context.Context, requestID string) (FriendRequest, error) {
	var item FriendRequest
	err := s.db.QueryRowContext(ctx, `
		SELECT fr.id, fr.from_id, fu.name, fr.to_id, tu.name, fr.status, fr.created_at, fr.updated_at
		FROM friend_requests fr
		JOIN users fu ON fu.id = fr.from_id
		JOIN users tu ON tu.id = fr.to_id
		WHERE fr.id=$1
	`, requestID).Scan(&item.ID, &item.FromID, &item.FromName, &item.ToID, &item.ToName, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return FriendRequest{}, err
	}
	return item, nil
}

// InsertFriendRequest creates a PENDING request. A second request between the
// same pair in either direction hits the pair-uniqueness index.
func (s *PostgresStore) InsertFriendRequest(ctx context.Context, request FriendRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO friend_requests (id, from_id, to_id, status)
		VALUES ($1, $2, $3, 'PENDING')
	`, request.ID, request.FromID, request.ToID)
	if err != nil {
		return fmt.Errorf("insert friend request: %w", err)
	}
	return nil
}

func (s *PostgresStore) AnswerFriendRequest(ctx context.Context, requestID, userID, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE friend_requests
		SET status=$3, updated_at=NOW()
		WHERE id=$1 AND to_id=$2 AND status='PENDING'
	`, requestID, userID, status)
	if err != nil {
		return false, fmt.Errorf("answer friend request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("answer friend request rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) RemoveFriend(ctx context.Context, userID, friendID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM friend_requests
		WHERE status='ACCEPTED'
		  AND ((from_id=$1 AND to_id=$2) OR (from_id=$2 AND to_id=$1))
	`, userID, friendID)
	if err != nil {
		return false, fmt.Errorf("remove friend: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove friend rows: %w", err)
	}
	return affected > 0, nil
}
