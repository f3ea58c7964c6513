package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"estatehub/internal/domain"
)

// ConversationResolver finds or creates the single conversation between an
// inquirer and a property owner. It always runs inside the caller's transaction.
type ConversationResolver struct {
	log *slog.Logger
	now func() time.Time
}

func NewConversationResolver(logger *slog.Logger) *ConversationResolver {
	return &ConversationResolver{
		log: orDiscard(logger),
		now: utcNow,
	}
}

func InquirySubject(propertyTitle string) string {
	return "Inquiry for: " + propertyTitle
}

// Resolve returns the conversation for {inquirerID, ownerID} on propertyID, creating it
// together with both participant rows when absent. It returns nil when the inquirer
// owns the property. created reports whether this call inserted the conversation.
func (r *ConversationResolver) Resolve(
	ctx context.Context,
	repos domain.Repositories,
	propertyID, inquirerID, ownerID int64,
	subject string,
) (conv *domain.Conversation, created bool, err error) {
	if inquirerID == ownerID {
		return nil, false, nil
	}

	existing, err := repos.Conversations().ListForPropertyWithParticipants(ctx, propertyID)
	if err != nil {
		return nil, false, err
	}
	for _, c := range existing {
		if sameParticipants(c.ParticipantIDs, inquirerID, ownerID) {
			conv := c.Conversation
			return &conv, false, nil
		}
	}

	low, high := orderedPair(inquirerID, ownerID)
	now := r.now()
	conv = &domain.Conversation{
		PropertyID:      propertyID,
		Subject:         subject,
		ParticipantLow:  low,
		ParticipantHigh: high,
		CreatedAt:       now,
	}
	inserted, err := repos.Conversations().CreateIfAbsent(ctx, conv)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// Another transaction committed the same triple after our lookup.
		winner, err := repos.Conversations().FindByPair(ctx, propertyID, low, high)
		if err != nil {
			return nil, false, err
		}
		if winner == nil {
			return nil, false, domain.Conflict(fmt.Sprintf(
				"conversation for property %d and users %d/%d is being created concurrently",
				propertyID, low, high))
		}
		r.log.InfoContext(ctx, "conversation created concurrently, reusing",
			"conversation_id", winner.ID, "property_id", propertyID)
		return winner, false, nil
	}

	for _, userID := range []int64{inquirerID, ownerID} {
		if err := repos.Participants().Add(ctx, conv.ID, userID, now); err != nil {
			return nil, false, err
		}
	}
	r.log.InfoContext(ctx, "conversation created",
		"conversation_id", conv.ID, "property_id", propertyID,
		"inquirer_id", inquirerID, "owner_id", ownerID)
	return conv, true, nil
}

func sameParticipants(ids []int64, a, b int64) bool {
	if len(ids) != 2 {
		return false
	}
	return (ids[0] == a && ids[1] == b) || (ids[0] == b && ids[1] == a)
}

func orderedPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

func utcNow() time.Time { return time.Now().UTC() }

func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}
