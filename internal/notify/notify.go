// Package notify fans committed domain events out to external channels.
// Every channel is best effort: callers log failures and carry on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"estatehub/internal/domain"
)

// Composite delivers each event to every registered notifier.
type Composite struct {
	notifiers []domain.Notifier
}

var _ domain.Notifier = (*Composite)(nil)

func NewComposite(notifiers ...domain.Notifier) *Composite {
	c := &Composite{}
	for _, n := range notifiers {
		c.Add(n)
	}
	return c
}

// Add registers n; nil notifiers are ignored so optional channels can be passed unconditionally.
func (c *Composite) Add(n domain.Notifier) {
	if n != nil {
		c.notifiers = append(c.notifiers, n)
	}
}

// Notify tries every notifier and joins the failures.
func (c *Composite) Notify(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, n := range c.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

// Log records events in the application log.
type Log struct {
	log *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{log: logger}
}

func (l *Log) Notify(ctx context.Context, ev domain.Event) error {
	l.log.InfoContext(ctx, "event",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"recipient_id", ev.RecipientID,
		"conversation_id", ev.ConversationID,
		"inquiry_id", ev.InquiryID,
	)
	return nil
}
