package sqlstore

import (
	"context"
	"fmt"
	"time"

	"estatehub/internal/domain"
)

type ParticipantRepo struct {
	c conn
}

var _ domain.ParticipantRepository = (*ParticipantRepo)(nil)

func (r *ParticipantRepo) Add(ctx context.Context, conversationID, userID int64, joinedAt time.Time) error {
	if _, err := r.c.exec(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, joined_at)
		VALUES (?, ?, ?)
	`, conversationID, userID, joinedAt); err != nil {
		return fmt.Errorf("insert participant %d: %w", userID, err)
	}
	return nil
}

// ListParticipants returns just the user IDs in a conversation.
func (r *ParticipantRepo) ListParticipants(ctx context.Context, conversationID int64) ([]int64, error) {
	rows, err := r.c.query(ctx, `
		SELECT user_id FROM conversation_participants
		WHERE conversation_id = ?
		ORDER BY user_id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list participant ids: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ParticipantRepo) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists bool
	err := r.c.queryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = ? AND user_id = ?
		)
	`, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return exists, nil
}
