package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"estatehub/internal/domain"
	"estatehub/internal/notify"
)

func sampleEvent() domain.Event {
	convID, inqID := int64(12), int64(34)
	return domain.Event{
		ID:             "3f1c9a52-2d7c-4b8e-9d0a-5f6e7a8b9c0d",
		Type:           domain.EventInquiryCreated,
		OccurredAt:     time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		RecipientID:    9,
		RecipientEmail: "olga@example.com",
		ConversationID: &convID,
		InquiryID:      &inqID,
		Subject:        "Inquiry for: Downtown Loft",
		Preview:        "Is this still available?",
	}
}

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Notify(context.Context, domain.Event) error {
	s.calls++
	return s.err
}

func TestComposite(t *testing.T) {
	ok := &stubNotifier{}
	failing := &stubNotifier{err: errors.New("boom")}
	c := notify.NewComposite(failing, nil, ok)

	err := c.Notify(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, ok.calls, "later notifiers still run after a failure")
	assert.Equal(t, 1, failing.calls)

	assert.NoError(t, notify.NewComposite(ok).Notify(context.Background(), sampleEvent()))
}

func TestKafka(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "estatehub.events" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "9" {
			return errors.New("unexpected key " + string(key))
		}
		value, _ := msg.Value.Encode()
		var got domain.Event
		if err := json.Unmarshal(value, &got); err != nil {
			return err
		}
		if got.Type != domain.EventInquiryCreated || got.RecipientEmail != "" {
			return errors.New("unexpected payload " + string(value))
		}
		return nil
	})
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := notify.NewKafka(notify.NewProducerFrom(sp), "estatehub.events")
	assert.NoError(t, k.Notify(context.Background(), sampleEvent()))
	assert.ErrorIs(t, k.Notify(context.Background(), sampleEvent()), sarama.ErrOutOfBrokers)
	require.NoError(t, sp.Close())
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

func TestEmail(t *testing.T) {
	t.Run("Enqueues delivery task", func(t *testing.T) {
		q := new(MockEnqueuer)
		q.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
			if task.Type() != notify.TypeEmailDelivery {
				return false
			}
			var p notify.EmailTaskPayload
			if err := json.Unmarshal(task.Payload(), &p); err != nil {
				return false
			}
			return p.To == "olga@example.com" && p.TemplateID == notify.TemplateInquiryReceived &&
				p.Data["subject"] == "Inquiry for: Downtown Loft"
		})).Return(&asynq.TaskInfo{ID: "email:1"}, nil).Once()

		require.NoError(t, notify.NewEmail(q, "mail").Notify(context.Background(), sampleEvent()))
		q.AssertExpectations(t)
	})

	t.Run("Skips events without address", func(t *testing.T) {
		q := new(MockEnqueuer)
		ev := sampleEvent()
		ev.RecipientEmail = ""

		require.NoError(t, notify.NewEmail(q, "").Notify(context.Background(), ev))
		q.AssertNotCalled(t, "EnqueueContext", mock.Anything, mock.Anything)
	})

	t.Run("Queue failure surfaces", func(t *testing.T) {
		q := new(MockEnqueuer)
		q.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))

		err := notify.NewEmail(q, "").Notify(context.Background(), sampleEvent())
		assert.ErrorContains(t, err, "redis down")
	})
}

type recordingPusher struct {
	userID  int64
	payload any
}

func (r *recordingPusher) SendToUser(userID int64, payload any) int {
	r.userID, r.payload = userID, payload
	return 1
}

func TestPush(t *testing.T) {
	p := &recordingPusher{}
	ev := sampleEvent()
	ev.Type = domain.EventMessageSent

	require.NoError(t, notify.NewPush(p).Notify(context.Background(), ev))
	assert.Equal(t, int64(9), p.userID)
	assert.Equal(t, map[string]any{"type": "message", "event": ev}, p.payload)
}
