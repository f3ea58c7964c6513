package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"estatehub/internal/domain"
)

// TypeEmailDelivery is consumed by the mail worker, which renders the template and sends it.
const TypeEmailDelivery = "email:deliver"

const (
	TemplateInquiryReceived = "inquiry_received"
	TemplateNewMessage      = "new_message"
)

type EmailTaskPayload struct {
	To         string         `json:"to"`
	TemplateID string         `json:"template_id"`
	Data       map[string]any `json:"data"`
}

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func NewTaskClient(redisAddr string) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
}

// Email hands events with a known recipient address to the mail worker queue.
type Email struct {
	client TaskEnqueuer
	queue  string
}

var _ domain.Notifier = (*Email)(nil)

func NewEmail(client TaskEnqueuer, queue string) *Email {
	if queue == "" {
		queue = "default"
	}
	return &Email{client: client, queue: queue}
}

func (e *Email) Notify(ctx context.Context, ev domain.Event) error {
	if ev.RecipientEmail == "" {
		return nil
	}
	template := TemplateNewMessage
	if ev.Type == domain.EventInquiryCreated {
		template = TemplateInquiryReceived
	}
	data := map[string]any{
		"subject": ev.Subject,
		"preview": ev.Preview,
	}
	if ev.ConversationID != nil {
		data["conversation_id"] = *ev.ConversationID
	}
	if ev.InquiryID != nil {
		data["inquiry_id"] = *ev.InquiryID
	}
	payload, err := json.Marshal(EmailTaskPayload{
		To:         ev.RecipientEmail,
		TemplateID: template,
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("marshal email task: %w", err)
	}

	task := asynq.NewTask(TypeEmailDelivery, payload)
	if _, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(e.queue),
		asynq.TaskID("email:"+ev.ID),
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
	); err != nil {
		return fmt.Errorf("enqueue email task: %w", err)
	}
	return nil
}
