package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"estatehub/internal/domain"
)

type ConversationRepo struct {
	c conn
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	c, err := scanConversation(r.c.queryRow(ctx, `
		SELECT id, property_id, subject, participant_low, participant_high, created_at
		FROM conversations WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("conversation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// ListForPropertyWithParticipants loads every conversation of a property together
// with its participant ids in a single query.
func (r *ConversationRepo) ListForPropertyWithParticipants(ctx context.Context, propertyID int64) ([]*domain.ConversationWithParticipants, error) {
	rows, err := r.c.query(ctx, `
		SELECT c.id, c.property_id, c.subject, c.participant_low, c.participant_high, c.created_at, cp.user_id
		FROM conversations c
		LEFT JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE c.property_id = ?
		ORDER BY c.id ASC, cp.user_id ASC
	`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("list property conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.ConversationWithParticipants
	var cur *domain.ConversationWithParticipants
	for rows.Next() {
		var (
			c         domain.Conversation
			createdAt nullTime
			userID    sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.PropertyID, &c.Subject, &c.ParticipantLow, &c.ParticipantHigh, &createdAt, &userID); err != nil {
			return nil, fmt.Errorf("scan property conversation: %w", err)
		}
		if cur == nil || cur.ID != c.ID {
			c.CreatedAt = createdAt.Time
			cur = &domain.ConversationWithParticipants{Conversation: c}
			res = append(res, cur)
		}
		if userID.Valid {
			cur.ParticipantIDs = append(cur.ParticipantIDs, userID.Int64)
		}
	}
	return res, rows.Err()
}

// FindByPair looks a conversation up by its normalized identity triple; nil when absent.
func (r *ConversationRepo) FindByPair(ctx context.Context, propertyID, low, high int64) (*domain.Conversation, error) {
	c, err := scanConversation(r.c.queryRow(ctx, `
		SELECT id, property_id, subject, participant_low, participant_high, created_at
		FROM conversations
		WHERE property_id = ? AND participant_low = ? AND participant_high = ?
	`, propertyID, low, high))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation by pair: %w", err)
	}
	return c, nil
}

// CreateIfAbsent relies on the unique (property_id, participant_low, participant_high)
// index: a concurrent insert of the same triple is skipped instead of duplicated.
func (r *ConversationRepo) CreateIfAbsent(ctx context.Context, c *domain.Conversation) (bool, error) {
	err := r.c.queryRow(ctx, `
		INSERT INTO conversations (property_id, subject, participant_low, participant_high, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id
	`, c.PropertyID, c.Subject, c.ParticipantLow, c.ParticipantHigh, c.CreatedAt).Scan(&c.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert conversation: %w", err)
	}
	return true, nil
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var (
		c         domain.Conversation
		createdAt nullTime
	)
	if err := row.Scan(&c.ID, &c.PropertyID, &c.Subject, &c.ParticipantLow, &c.ParticipantHigh, &createdAt); err != nil {
		return nil, err
	}
	c.CreatedAt = createdAt.Time
	return &c, nil
}
