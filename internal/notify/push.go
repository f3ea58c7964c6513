package notify

import (
	"context"

	"estatehub/internal/domain"
)

// UserPusher is satisfied by *ws.Hub.
type UserPusher interface {
	SendToUser(userID int64, payload any) int
}

// Push forwards events to the recipient's open websocket connections.
// Offline recipients are skipped; they see the change on their next poll.
type Push struct {
	hub UserPusher
}

var _ domain.Notifier = (*Push)(nil)

func NewPush(hub UserPusher) *Push {
	return &Push{hub: hub}
}

func (p *Push) Notify(_ context.Context, ev domain.Event) error {
	kind := "message"
	if ev.Type == domain.EventInquiryCreated {
		kind = "inquiry"
	}
	p.hub.SendToUser(ev.RecipientID, map[string]any{
		"type":  kind,
		"event": ev,
	})
	return nil
}
