package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"estatehub/internal/domain"
)

// maxSubmitAttempts bounds whole-transaction retries after a creation conflict.
const maxSubmitAttempts = 3

type InquiryService struct {
	store    domain.UnitOfWorkFactory
	resolver *ConversationResolver
	messages *MessageService
	notifier domain.Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewInquiryService(
	store domain.UnitOfWorkFactory,
	resolver *ConversationResolver,
	messages *MessageService,
	notifier domain.Notifier,
	logger *slog.Logger,
) *InquiryService {
	return &InquiryService{
		store:    store,
		resolver: resolver,
		messages: messages,
		notifier: orNop(notifier),
		log:      orDiscard(logger),
		now:      utcNow,
	}
}

type SubmitInquiryInput struct {
	PropertyID *int64  `json:"property_id" validate:"required_without=ProjectID,excluded_with=ProjectID"`
	ProjectID  *int64  `json:"project_id" validate:"required_without=PropertyID,excluded_with=PropertyID"`
	InquirerID *int64  `json:"-"`
	Name       string  `json:"name" validate:"required,min=2,max=100"`
	Email      string  `json:"email" validate:"required,email,max=254"`
	Phone      *string `json:"phone" validate:"omitempty,max=20,phone"`
	Message    string  `json:"message" validate:"required,min=10,max=1000"`
}

func (in SubmitInquiryInput) normalized() SubmitInquiryInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Message = strings.TrimSpace(in.Message)
	if in.Phone != nil {
		p := strings.TrimSpace(*in.Phone)
		if p == "" {
			in.Phone = nil
		} else {
			in.Phone = &p
		}
	}
	return in
}

// submission carries what a committed submit needs for its notification.
type submission struct {
	inquiry      *domain.Inquiry
	created      bool
	ownerID      int64
	subject      string
	conversation *domain.Conversation
	message      *domain.Message
}

// SubmitInquiry records an inquiry and, for a signed-in inquirer who does not own
// the property, opens or reuses the conversation with the owner and appends the
// inquiry text to it. All writes commit together or not at all.
func (s *InquiryService) SubmitInquiry(ctx context.Context, in SubmitInquiryInput) (*domain.Inquiry, error) {
	in = in.normalized()
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var (
		sub *submission
		err error
	)
	for attempt := 1; ; attempt++ {
		sub, err = s.submitOnce(ctx, in)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= maxSubmitAttempts {
			return nil, err
		}
		s.log.WarnContext(ctx, "inquiry submission conflicted, retrying", "attempt", attempt, "err", err)
	}

	s.notifySubmission(ctx, sub)
	return sub.inquiry, nil
}

func (s *InquiryService) submitOnce(ctx context.Context, in SubmitInquiryInput) (*submission, error) {
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

	sub := &submission{}
	if in.PropertyID != nil {
		p, err := uow.Directory().GetProperty(ctx, *in.PropertyID)
		if err != nil {
			return nil, err
		}
		sub.ownerID, sub.subject = p.OwnerID, InquirySubject(p.Title)
	} else {
		p, err := uow.Directory().GetProject(ctx, *in.ProjectID)
		if err != nil {
			return nil, err
		}
		sub.ownerID, sub.subject = p.OwnerID, InquirySubject(p.Title)
	}

	sub.inquiry, sub.created, err = s.findOrCreate(ctx, uow, in)
	if err != nil {
		return nil, err
	}

	// Conversations are property-scoped and need a stable inquirer identity.
	if in.PropertyID != nil && in.InquirerID != nil {
		conv, _, err := s.resolver.Resolve(ctx, uow, *in.PropertyID, *in.InquirerID, sub.ownerID, sub.subject)
		if err != nil {
			return nil, err
		}
		if conv != nil {
			if sub.inquiry.ConversationID == nil {
				if err := uow.Inquiries().LinkConversation(ctx, sub.inquiry.ID, conv.ID); err != nil {
					return nil, err
				}
				sub.inquiry.ConversationID = &conv.ID
			}
			sub.message, err = s.messages.appendMessage(ctx, uow, conv, *in.InquirerID, in.Message)
			if err != nil {
				return nil, err
			}
			sub.conversation = conv
		}
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true
	return sub, nil
}

// findOrCreate returns the existing inquiry of a signed-in inquirer for the same
// target unchanged. Guest inquiries always insert.
func (s *InquiryService) findOrCreate(ctx context.Context, repos domain.Repositories, in SubmitInquiryInput) (*domain.Inquiry, bool, error) {
	if in.InquirerID != nil {
		existing, err := repos.Inquiries().FindByInquirer(ctx, in.PropertyID, in.ProjectID, *in.InquirerID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	now := s.now()
	inq := &domain.Inquiry{
		PropertyID: in.PropertyID,
		ProjectID:  in.ProjectID,
		InquirerID: in.InquirerID,
		Name:       in.Name,
		Email:      in.Email,
		Phone:      in.Phone,
		Message:    in.Message,
		Status:     domain.InquiryNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	inserted, err := repos.Inquiries().CreateIfAbsent(ctx, inq)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return inq, true, nil
	}
	if in.InquirerID == nil {
		return nil, false, domain.Conflict("guest inquiry insert was skipped")
	}

	// Lost the race against a concurrent submission of the same key.
	existing, err := repos.Inquiries().FindByInquirer(ctx, in.PropertyID, in.ProjectID, *in.InquirerID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, domain.Conflict("inquiry is being created concurrently")
	}
	return existing, false, nil
}

func (s *InquiryService) notifySubmission(ctx context.Context, sub *submission) {
	inq := sub.inquiry
	ev := domain.Event{
		ID:          uuid.NewString(),
		Type:        domain.EventInquiryCreated,
		OccurredAt:  s.now(),
		ActorID:     inq.InquirerID,
		RecipientID: sub.ownerID,
		PropertyID:  inq.PropertyID,
		ProjectID:   inq.ProjectID,
		InquiryID:   &inq.ID,
		Subject:     sub.subject,
		Preview:     preview(inq.Message),
	}
	if sub.conversation != nil {
		ev.ConversationID = &sub.conversation.ID
	}
	if !sub.created {
		if sub.message == nil {
			return
		}
		ev.Type = domain.EventMessageSent
		ev.MessageID = &sub.message.ID
		ev.Preview = preview(sub.message.Content)
	}
	if u, err := s.store.Directory().GetUser(ctx, sub.ownerID); err == nil {
		ev.RecipientEmail = u.Email
	}
	publish(ctx, s.notifier, s.log, ev)
}

// ReceivedFilter selects a page of inquiries addressed to an owner.
type ReceivedFilter struct {
	Page     int
	PageSize int
	Status   *domain.InquiryStatus
}

// ListReceived lists inquiries on the properties and projects of ownerID, newest first.
func (s *InquiryService) ListReceived(ctx context.Context, ownerID int64, f ReceivedFilter) (*domain.Page[*domain.Inquiry], error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, invalidStatus()
	}
	page, size, offset := normalizePage(f.Page, f.PageSize)
	items, total, err := s.store.Inquiries().ListForOwner(ctx, ownerID, domain.InquiryFilter{
		Status: f.Status,
		Offset: offset,
		Limit:  size,
	})
	if err != nil {
		return nil, err
	}
	return &domain.Page[*domain.Inquiry]{Items: items, Page: page, PageSize: size, Total: total}, nil
}

// ListSent lists the inquiries submitted by inquirerID, newest first.
func (s *InquiryService) ListSent(ctx context.Context, inquirerID int64, page, pageSize int) (*domain.Page[*domain.Inquiry], error) {
	page, size, offset := normalizePage(page, pageSize)
	items, total, err := s.store.Inquiries().ListForInquirer(ctx, inquirerID, offset, size)
	if err != nil {
		return nil, err
	}
	return &domain.Page[*domain.Inquiry]{Items: items, Page: page, PageSize: size, Total: total}, nil
}

// UpdateStatus moves an inquiry between new, contacted and closed.
// Only the owner of the inquired property or project, or an admin, may do so.
func (s *InquiryService) UpdateStatus(
	ctx context.Context,
	inquiryID int64,
	actor domain.Actor,
	status domain.InquiryStatus,
) (*domain.Inquiry, error) {
	if !status.Valid() {
		return nil, invalidStatus()
	}
	inq, err := s.authorizeOwner(ctx, inquiryID, actor)
	if err != nil {
		return nil, err
	}
	if inq.Status == status {
		return inq, nil
	}
	now := s.now()
	if err := s.store.Inquiries().UpdateStatus(ctx, inquiryID, status, now); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "inquiry status changed",
		"inquiry_id", inquiryID, "from", inq.Status, "to", status, "actor_id", actor.ID)
	inq.Status = status
	inq.UpdatedAt = now
	return inq, nil
}

// Delete removes an inquiry on behalf of its owner or an admin.
// A linked conversation and its messages are kept.
func (s *InquiryService) Delete(ctx context.Context, inquiryID int64, actor domain.Actor) error {
	if _, err := s.authorizeOwner(ctx, inquiryID, actor); err != nil {
		return err
	}
	if err := s.store.Inquiries().Delete(ctx, inquiryID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "inquiry deleted", "inquiry_id", inquiryID, "actor_id", actor.ID)
	return nil
}

func (s *InquiryService) authorizeOwner(ctx context.Context, inquiryID int64, actor domain.Actor) (*domain.Inquiry, error) {
	inq, err := s.store.Inquiries().GetByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return inq, nil
	}
	var ownerID int64
	switch {
	case inq.PropertyID != nil:
		p, err := s.store.Directory().GetProperty(ctx, *inq.PropertyID)
		if err != nil {
			return nil, err
		}
		ownerID = p.OwnerID
	case inq.ProjectID != nil:
		p, err := s.store.Directory().GetProject(ctx, *inq.ProjectID)
		if err != nil {
			return nil, err
		}
		ownerID = p.OwnerID
	}
	if ownerID != actor.ID {
		return nil, domain.Forbidden("only the owner can manage this inquiry")
	}
	return inq, nil
}

func invalidStatus() error {
	return domain.Validation(domain.FieldError{
		Field:   "status",
		Rule:    "oneof",
		Message: "status must be one of [new contacted closed]",
	})
}
