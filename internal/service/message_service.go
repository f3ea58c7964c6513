package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"estatehub/internal/domain"
)

const (
	DefaultMaxContentLength = 2000
	DefaultPageSize         = 20
	MaxPageSize             = 100
)

type MessageConfig struct {
	MaxContentLength int
}

type MessageService struct {
	store    domain.UnitOfWorkFactory
	notifier domain.Notifier
	log      *slog.Logger
	now      func() time.Time

	MaxContentLength int
}

func NewMessageService(
	store domain.UnitOfWorkFactory,
	notifier domain.Notifier,
	logger *slog.Logger,
	cfg MessageConfig,
) *MessageService {
	maxLen := cfg.MaxContentLength
	if maxLen <= 0 {
		maxLen = DefaultMaxContentLength
	}
	return &MessageService{
		store:            store,
		notifier:         orNop(notifier),
		log:              orDiscard(logger),
		now:              utcNow,
		MaxContentLength: maxLen,
	}
}

// ListOptions selects a page of a listing.
type ListOptions struct {
	Page     int
	PageSize int
	Order    domain.SortOrder
}

type ConversationFilter struct {
	Page       int
	PageSize   int
	PropertyID *int64
	UnreadOnly bool
}

func (s *MessageService) SendMessage(
	ctx context.Context,
	conversationID int64,
	senderID int64,
	content string,
) (*domain.MessageView, error) {
	uow, err := s.store.Begin(ctx, domain.TxOptions{})
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = uow.Rollback(ctx)
		}
	}()

	conv, err := uow.Conversations().GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	msg, err := s.appendMessage(ctx, uow, conv, senderID, content)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true

	s.notifyMessage(ctx, conv, msg)
	return &domain.MessageView{Message: msg, Sender: s.userRef(ctx, senderID)}, nil
}

// appendMessage persists content from senderID to the other participant of conv.
// Callers own the transaction.
func (s *MessageService) appendMessage(
	ctx context.Context,
	repos domain.Repositories,
	conv *domain.Conversation,
	senderID int64,
	content string,
) (*domain.Message, error) {
	participants, err := repos.Participants().ListParticipants(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(participants, senderID) {
		return nil, domain.Forbidden("not a participant in this conversation")
	}
	if len(participants) != 2 {
		s.log.ErrorContext(ctx, "conversation participant invariant violated",
			"conversation_id", conv.ID, "participants", participants)
		return nil, domain.Invariant(fmt.Sprintf(
			"conversation %d has %d participants, want 2", conv.ID, len(participants)))
	}
	recipientID := participants[0]
	if recipientID == senderID {
		recipientID = participants[1]
	}

	content = strings.TrimSpace(content)
	if err := s.checkContent(content); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
		Status:         domain.MessageSent,
		PropertyID:     conv.PropertyID,
		CreatedAt:      s.now(),
	}
	if err := repos.Messages().Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) checkContent(content string) error {
	n := utf8.RuneCountInString(content)
	switch {
	case n == 0:
		return domain.Validation(domain.FieldError{
			Field: "content", Rule: "required", Message: "content is required",
		})
	case n > s.MaxContentLength:
		return domain.Validation(domain.FieldError{
			Field:   "content",
			Rule:    "max",
			Message: fmt.Sprintf("content must be at most %d characters", s.MaxContentLength),
		})
	}
	return nil
}

func (s *MessageService) ListMessages(
	ctx context.Context,
	conversationID int64,
	requesterID int64,
	opts ListOptions,
) (*domain.Page[*domain.Message], error) {
	if err := s.authorize(ctx, s.store, conversationID, requesterID); err != nil {
		return nil, err
	}
	order := opts.Order
	switch order {
	case "":
		order = domain.SortAscending
	case domain.SortAscending, domain.SortDescending:
	default:
		return nil, domain.Validation(domain.FieldError{
			Field: "order", Rule: "oneof", Message: "order must be one of [asc desc]",
		})
	}
	page, size, offset := normalizePage(opts.Page, opts.PageSize)
	items, total, err := s.store.Messages().ListForConversation(ctx, conversationID, order, offset, size)
	if err != nil {
		return nil, err
	}
	return &domain.Page[*domain.Message]{Items: items, Page: page, PageSize: size, Total: total}, nil
}

// MarkRead marks every unread message addressed to readerID in the conversation.
// It is a no-op when nothing is unread.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, readerID int64) (int64, error) {
	if err := s.authorize(ctx, s.store, conversationID, readerID); err != nil {
		return 0, err
	}
	n, err := s.store.Messages().MarkRead(ctx, conversationID, readerID, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.DebugContext(ctx, "messages marked read",
			"conversation_id", conversationID, "reader_id", readerID, "count", n)
	}
	return n, nil
}

func (s *MessageService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.store.Messages().CountUnread(ctx, userID)
}

// ListConversations returns the inbox of userID, most recently active first.
func (s *MessageService) ListConversations(
	ctx context.Context,
	userID int64,
	f ConversationFilter,
) (*domain.Page[*domain.ConversationSummary], error) {
	page, size, offset := normalizePage(f.Page, f.PageSize)
	items, total, err := s.store.Messages().ListSummaries(ctx, domain.SummaryQuery{
		UserID:     userID,
		PropertyID: f.PropertyID,
		UnreadOnly: f.UnreadOnly,
		Offset:     offset,
		Limit:      size,
	})
	if err != nil {
		return nil, err
	}

	users := map[int64]*domain.UserRef{}
	titles := map[int64]string{}
	for _, it := range items {
		if it.OtherUserID != 0 {
			ref, ok := users[it.OtherUserID]
			if !ok {
				ref = s.userRef(ctx, it.OtherUserID)
				users[it.OtherUserID] = ref
			}
			it.OtherUser = ref
		}
		title, ok := titles[it.PropertyID]
		if !ok {
			if p, err := s.store.Directory().GetProperty(ctx, it.PropertyID); err == nil {
				title = p.Title
			} else if !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			titles[it.PropertyID] = title
		}
		it.PropertyTitle = title
	}
	return &domain.Page[*domain.ConversationSummary]{Items: items, Page: page, PageSize: size, Total: total}, nil
}

// DeleteMessage removes a message. Only its sender may delete it.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID, requesterID int64) error {
	msg, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return domain.Forbidden("only the sender can delete this message")
	}
	return s.store.Messages().Delete(ctx, messageID)
}

func (s *MessageService) authorize(ctx context.Context, repos domain.Repositories, conversationID, userID int64) error {
	if _, err := repos.Conversations().GetByID(ctx, conversationID); err != nil {
		return err
	}
	ok, err := repos.Participants().IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Forbidden("not a participant in this conversation")
	}
	return nil
}

// userRef falls back to the bare id when the directory has no such user.
func (s *MessageService) userRef(ctx context.Context, userID int64) *domain.UserRef {
	u, err := s.store.Directory().GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.WarnContext(ctx, "user lookup failed", "user_id", userID, "err", err)
		}
		return &domain.UserRef{ID: userID}
	}
	return &domain.UserRef{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}
}

func (s *MessageService) notifyMessage(ctx context.Context, conv *domain.Conversation, msg *domain.Message) {
	ev := domain.Event{
		ID:             uuid.NewString(),
		Type:           domain.EventMessageSent,
		OccurredAt:     msg.CreatedAt,
		ActorID:        &msg.SenderID,
		RecipientID:    msg.RecipientID,
		PropertyID:     &conv.PropertyID,
		ConversationID: &msg.ConversationID,
		MessageID:      &msg.ID,
		Subject:        conv.Subject,
		Preview:        preview(msg.Content),
	}
	if u, err := s.store.Directory().GetUser(ctx, msg.RecipientID); err == nil {
		ev.RecipientEmail = u.Email
	}
	publish(ctx, s.notifier, s.log, ev)
}

func normalizePage(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	// Saturate instead of wrapping so a huge page lands past the last row.
	if page-1 > math.MaxInt/size {
		return page, size, math.MaxInt
	}
	return page, size, (page - 1) * size
}

func preview(content string) string {
	const n = 140
	if utf8.RuneCountInString(content) <= n {
		return content
	}
	return string([]rune(content)[:n]) + "…"
}
