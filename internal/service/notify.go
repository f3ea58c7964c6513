package service

import (
	"context"
	"log/slog"

	"estatehub/internal/domain"
)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Event) error { return nil }

func orNop(n domain.Notifier) domain.Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

// publish runs after commit. A failed notification never fails the operation.
func publish(ctx context.Context, n domain.Notifier, log *slog.Logger, ev domain.Event) {
	if err := n.Notify(ctx, ev); err != nil {
		log.WarnContext(ctx, "notification failed",
			"event_id", ev.ID, "event_type", ev.Type, "recipient_id", ev.RecipientID, "err", err)
	}
}
