package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"estatehub/internal/domain"
)

var (
	ErrQueueFull = errors.New("notify: queue full")
	ErrClosed    = errors.New("notify: publisher closed")
)

type queued struct {
	ctx context.Context
	ev  domain.Event
}

// Async hands events to a background worker so slow channels stay off the
// request path. Events are dropped when the buffer is full.
type Async struct {
	next    domain.Notifier
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

var _ domain.Notifier = (*Async)(nil)

// NewAsync starts the worker. Each delivery to next is bounded by timeout.
func NewAsync(next domain.Notifier, buffer int, timeout time.Duration, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		next:    next,
		log:     logger,
		timeout: timeout,
		queue:   make(chan queued, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Notify(ctx context.Context, ev domain.Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- queued{ctx: context.WithoutCancel(ctx), ev: ev}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for q := range a.queue {
		ctx, cancel := context.WithTimeout(q.ctx, a.timeout)
		if err := a.next.Notify(ctx, q.ev); err != nil {
			a.log.WarnContext(ctx, "async notification failed",
				"event_id", q.ev.ID, "event_type", q.ev.Type, "err", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits until the queued ones are delivered.
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}
