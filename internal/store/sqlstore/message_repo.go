package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"estatehub/internal/domain"
)

type MessageRepo struct {
	c conn
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

const messageColumns = `id, conversation_id, sender_id, recipient_id, content, status, read_at, property_id, created_at`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if err := r.c.queryRow(ctx, `
		INSERT INTO messages
			(conversation_id, sender_id, recipient_id, content, status, read_at, property_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, m.ConversationID, m.SenderID, m.RecipientID, m.Content, string(m.Status),
		m.ReadAt, m.PropertyID, m.CreatedAt,
	).Scan(&m.ID); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	m, err := scanMessage(r.c.queryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("message not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.c.exec(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("message not found")
	}
	return nil
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64, order domain.SortOrder, offset, limit int) ([]*domain.Message, int, error) {
	var total int
	if err := r.c.queryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE conversation_id = ?
	`, conversationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	orderBy := `created_at ASC, id ASC`
	if order == domain.SortDescending {
		orderBy = `created_at DESC, id DESC`
	}
	rows, err := r.c.query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY `+orderBy+`
		LIMIT ? OFFSET ?
	`, conversationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	res := make([]*domain.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, total, rows.Err()
}

// MarkRead moves every sent message addressed to readerID in the conversation to read.
// Rows already read are never touched, so read_at keeps its first value.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, readerID int64, at time.Time) (int64, error) {
	res, err := r.c.exec(ctx, `
		UPDATE messages SET status = 'read', read_at = ?
		WHERE conversation_id = ? AND recipient_id = ? AND status = 'sent'
	`, at, conversationID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return n, nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	if err := r.c.queryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE recipient_id = ? AND status = 'sent'
	`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// summaryCTE scopes every aggregate to the conversations of one user: per-conversation
// counts in stats, and the newest message per conversation in latest.
const summaryCTE = `
	WITH mine AS (
		SELECT conversation_id FROM conversation_participants WHERE user_id = ?
	),
	stats AS (
		SELECT m.conversation_id,
		       COUNT(*) AS message_count,
		       SUM(CASE WHEN m.recipient_id = ? AND m.status = 'sent' THEN 1 ELSE 0 END) AS unread_count
		FROM messages m
		JOIN mine ON mine.conversation_id = m.conversation_id
		GROUP BY m.conversation_id
	),
	latest AS (
		SELECT m.conversation_id, m.id, m.content, m.sender_id, m.created_at,
		       ROW_NUMBER() OVER (PARTITION BY m.conversation_id ORDER BY m.created_at DESC, m.id DESC) AS rn
		FROM messages m
		JOIN mine ON mine.conversation_id = m.conversation_id
	)`

// ListSummaries returns one inbox row per conversation of q.UserID, newest activity first.
func (r *MessageRepo) ListSummaries(ctx context.Context, q domain.SummaryQuery) ([]*domain.ConversationSummary, int, error) {
	where := `1 = 1`
	var filterArgs []any
	if q.PropertyID != nil {
		where += ` AND c.property_id = ?`
		filterArgs = append(filterArgs, *q.PropertyID)
	}
	if q.UnreadOnly {
		where += ` AND COALESCE(s.unread_count, 0) > 0`
	}

	countArgs := append([]any{q.UserID, q.UserID}, filterArgs...)
	var total int
	if err := r.c.queryRow(ctx, summaryCTE+`
		SELECT COUNT(*)
		FROM conversations c
		JOIN mine ON mine.conversation_id = c.id
		LEFT JOIN stats s ON s.conversation_id = c.id
		WHERE `+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversation summaries: %w", err)
	}

	args := append([]any{q.UserID, q.UserID, q.UserID}, filterArgs...)
	args = append(args, q.Limit, q.Offset)
	rows, err := r.c.query(ctx, summaryCTE+`
		SELECT c.id, c.property_id, c.subject, c.created_at,
		       COALESCE(other.user_id, 0),
		       l.id, l.content, l.sender_id, l.created_at,
		       COALESCE(s.unread_count, 0), COALESCE(s.message_count, 0)
		FROM conversations c
		JOIN mine ON mine.conversation_id = c.id
		LEFT JOIN conversation_participants other
		       ON other.conversation_id = c.id AND other.user_id <> ?
		LEFT JOIN latest l ON l.conversation_id = c.id AND l.rn = 1
		LEFT JOIN stats s ON s.conversation_id = c.id
		WHERE `+where+`
		ORDER BY COALESCE(l.created_at, c.created_at) DESC, c.id DESC
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversation summaries: %w", err)
	}
	defer rows.Close()

	res := make([]*domain.ConversationSummary, 0)
	for rows.Next() {
		var (
			s              domain.ConversationSummary
			createdAt      nullTime
			lastID, lastBy sql.NullInt64
			lastContent    sql.NullString
			lastAt         nullTime
		)
		if err := rows.Scan(
			&s.ConversationID, &s.PropertyID, &s.Subject, &createdAt,
			&s.OtherUserID,
			&lastID, &lastContent, &lastBy, &lastAt,
			&s.UnreadCount, &s.MessageCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan conversation summary: %w", err)
		}
		s.CreatedAt = createdAt.Time
		if lastID.Valid {
			s.LastMessage = &domain.LastMessage{
				ID:        lastID.Int64,
				Content:   lastContent.String,
				SenderID:  lastBy.Int64,
				CreatedAt: lastAt.Time,
			}
		}
		res = append(res, &s)
	}
	return res, total, rows.Err()
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var (
		m         domain.Message
		status    string
		readAt    nullTime
		createdAt nullTime
	)
	if err := row.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID, &m.Content,
		&status, &readAt, &m.PropertyID, &createdAt,
	); err != nil {
		return nil, err
	}
	m.Status = domain.MessageStatus(status)
	m.ReadAt = readAt.ptr()
	m.CreatedAt = createdAt.Time
	return &m, nil
}
