package domain

import "time"

// User is the display projection of an account owned by the identity subsystem.
type User struct {
	ID          int64  `db:"id" json:"id"`
	DisplayName string `db:"display_name" json:"display_name"`
	Email       string `db:"email" json:"email"`
	Role        string `db:"role" json:"-"`
}

// Property is the listing projection needed to route an inquiry to its owner.
type Property struct {
	ID      int64  `db:"id" json:"id"`
	OwnerID int64  `db:"owner_id" json:"owner_id"`
	Title   string `db:"title" json:"title"`
}

// Project is a multi-unit development that can be inquired about instead of a single property.
type Project struct {
	ID      int64  `db:"id" json:"id"`
	OwnerID int64  `db:"owner_id" json:"owner_id"`
	Title   string `db:"title" json:"title"`
}

type InquiryStatus string

const (
	InquiryNew       InquiryStatus = "new"
	InquiryContacted InquiryStatus = "contacted"
	InquiryClosed    InquiryStatus = "closed"
)

func (s InquiryStatus) Valid() bool {
	switch s {
	case InquiryNew, InquiryContacted, InquiryClosed:
		return true
	}
	return false
}

// Inquiry is a buyer's structured first contact about a property or project.
// Exactly one of PropertyID and ProjectID is set.
type Inquiry struct {
	ID             int64         `db:"id" json:"id"`
	PropertyID     *int64        `db:"property_id" json:"property_id,omitempty"`
	ProjectID      *int64        `db:"project_id" json:"project_id,omitempty"`
	InquirerID     *int64        `db:"inquirer_id" json:"inquirer_id,omitempty"`
	Name           string        `db:"name" json:"name"`
	Email          string        `db:"email" json:"email"`
	Phone          *string       `db:"phone" json:"phone,omitempty"`
	Message        string        `db:"message" json:"message"`
	Status         InquiryStatus `db:"status" json:"status"`
	ConversationID *int64        `db:"conversation_id" json:"conversation_id"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// Conversation is a two-party thread scoped to one property.
// ParticipantLow/High hold the sorted participant pair and back the uniqueness constraint.
type Conversation struct {
	ID              int64     `db:"id" json:"id"`
	PropertyID      int64     `db:"property_id" json:"property_id"`
	Subject         string    `db:"subject" json:"subject"`
	ParticipantLow  int64     `db:"participant_low" json:"-"`
	ParticipantHigh int64     `db:"participant_high" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ConversationParticipant represents the membership of a user in a conversation.
type ConversationParticipant struct {
	ConversationID int64     `db:"conversation_id"`
	UserID         int64     `db:"user_id"`
	JoinedAt       time.Time `db:"joined_at"`
}

// ConversationWithParticipants pairs a conversation with its participant user ids.
type ConversationWithParticipants struct {
	Conversation
	ParticipantIDs []int64
}

type MessageStatus string

const (
	MessageSent MessageStatus = "sent"
	MessageRead MessageStatus = "read"
)

// Message is a single entry in a conversation thread.
type Message struct {
	ID             int64         `db:"id" json:"id"`
	ConversationID int64         `db:"conversation_id" json:"conversation_id"`
	SenderID       int64         `db:"sender_id" json:"sender_id"`
	RecipientID    int64         `db:"recipient_id" json:"recipient_id"`
	Content        string        `db:"content" json:"content"`
	Status         MessageStatus `db:"status" json:"status"`
	ReadAt         *time.Time    `db:"read_at" json:"read_at,omitempty"`
	PropertyID     int64         `db:"property_id" json:"property_id"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// ConversationSummary is the per-conversation row shown in a user's inbox.
type ConversationSummary struct {
	ConversationID int64        `json:"conversation_id"`
	PropertyID     int64        `json:"property_id"`
	PropertyTitle  string       `json:"property_title,omitempty"`
	Subject        string       `json:"subject"`
	CreatedAt      time.Time    `json:"created_at"`
	OtherUser      *UserRef     `json:"other_user,omitempty"`
	LastMessage    *LastMessage `json:"last_message,omitempty"`
	UnreadCount    int          `json:"unread_count"`
	MessageCount   int          `json:"message_count"`

	OtherUserID int64 `json:"-"`
}

// LastMessage previews the most recent message of a conversation.
type LastMessage struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	SenderID  int64     `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UserRef carries the display fields attached to API responses.
type UserRef struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// Page is a single page of a paginated listing.
type Page[T any] struct {
	Items    []T `json:"items"`
	Page     int `json:"page"`
	PageSize int `json:"limit"`
	Total    int `json:"total"`
}

// SortOrder selects chronological direction for message listings.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// MessageView is a message with the sender's display fields attached.
type MessageView struct {
	*Message
	Sender *UserRef `json:"sender,omitempty"`
}

const RoleAdmin = "admin"

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   int64
	Role string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
