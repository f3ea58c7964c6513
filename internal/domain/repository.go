package domain

import (
	"context"
	"time"
)

// Directory resolves the external entities this subsystem only reads.
type Directory interface {
	GetProperty(ctx context.Context, id int64) (*Property, error)
	GetProject(ctx context.Context, id int64) (*Project, error)
	GetUser(ctx context.Context, id int64) (*User, error)
}

// InquiryFilter narrows owner-side inquiry listings.
type InquiryFilter struct {
	Status *InquiryStatus
	Offset int
	Limit  int
}

// InquiryRepository defines persistence operations for inquiries.
type InquiryRepository interface {
	// CreateIfAbsent inserts the inquiry unless one already exists for the same
	// (property|project, inquirer) key. It reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, in *Inquiry) (bool, error)
	FindByInquirer(ctx context.Context, propertyID, projectID *int64, inquirerID int64) (*Inquiry, error)
	GetByID(ctx context.Context, id int64) (*Inquiry, error)
	LinkConversation(ctx context.Context, inquiryID, conversationID int64) error
	UpdateStatus(ctx context.Context, inquiryID int64, status InquiryStatus, at time.Time) error
	Delete(ctx context.Context, id int64) error
	ListForOwner(ctx context.Context, ownerID int64, f InquiryFilter) ([]*Inquiry, int, error)
	ListForInquirer(ctx context.Context, inquirerID int64, offset, limit int) ([]*Inquiry, int, error)
}

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	ListForPropertyWithParticipants(ctx context.Context, propertyID int64) ([]*ConversationWithParticipants, error)
	FindByPair(ctx context.Context, propertyID, low, high int64) (*Conversation, error)
	// CreateIfAbsent inserts c unless the (property, low, high) triple already exists.
	CreateIfAbsent(ctx context.Context, c *Conversation) (bool, error)
}

// ParticipantRepository defines operations around conversation participants.
type ParticipantRepository interface {
	Add(ctx context.Context, conversationID, userID int64, joinedAt time.Time) error
	ListParticipants(ctx context.Context, conversationID int64) ([]int64, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
}

// SummaryQuery selects one page of a user's conversation inbox.
type SummaryQuery struct {
	UserID     int64
	PropertyID *int64
	UnreadOnly bool
	Offset     int
	Limit      int
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id int64) (*Message, error)
	Delete(ctx context.Context, id int64) error
	ListForConversation(ctx context.Context, conversationID int64, order SortOrder, offset, limit int) ([]*Message, int, error)
	MarkRead(ctx context.Context, conversationID, readerID int64, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	ListSummaries(ctx context.Context, q SummaryQuery) ([]*ConversationSummary, int, error)
}

// Repositories is the set of repositories bound to one connection or transaction.
type Repositories interface {
	Inquiries() InquiryRepository
	Conversations() ConversationRepository
	Participants() ParticipantRepository
	Messages() MessageRepository
	Directory() Directory
}

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Repositories
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// UnitOfWorkFactory starts unit of work instances and exposes non-transactional repositories.
type UnitOfWorkFactory interface {
	Repositories
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}
