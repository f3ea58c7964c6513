package domain

import (
	"context"
	"time"
)

type EventType string

const (
	EventInquiryCreated EventType = "inquiry.created"
	EventMessageSent    EventType = "message.sent"
)

// Event is published after a transaction commits.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	OccurredAt     time.Time `json:"occurred_at"`
	ActorID        *int64    `json:"actor_id,omitempty"`
	RecipientID    int64     `json:"recipient_id"`
	RecipientEmail string    `json:"-"`
	PropertyID     *int64    `json:"property_id,omitempty"`
	ProjectID      *int64    `json:"project_id,omitempty"`
	InquiryID      *int64    `json:"inquiry_id,omitempty"`
	ConversationID *int64    `json:"conversation_id,omitempty"`
	MessageID      *int64    `json:"message_id,omitempty"`
	Subject        string    `json:"subject,omitempty"`
	Preview        string    `json:"preview,omitempty"`
}

// Notifier delivers events outside the process. Callers treat failures as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}
