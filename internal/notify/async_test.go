package notify_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatehub/internal/domain"
	"estatehub/internal/notify"
)

// gatedNotifier blocks every delivery until release is closed.
type gatedNotifier struct {
	release chan struct{}

	mu       sync.Mutex
	got      []string
	deadline bool
}

func (g *gatedNotifier) Notify(ctx context.Context, ev domain.Event) error {
	<-g.release
	_, hasDeadline := ctx.Deadline()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.got = append(g.got, ev.ID)
	g.deadline = hasDeadline
	return nil
}

func TestAsync(t *testing.T) {
	slow := &gatedNotifier{release: make(chan struct{})}
	a := notify.NewAsync(slow, 1, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first, second, third := sampleEvent(), sampleEvent(), sampleEvent()
	first.ID, second.ID, third.ID = "first", "second", "third"

	start := time.Now()
	require.NoError(t, a.Notify(ctx, first))
	// The worker holds first; second fills the buffer.
	require.Eventually(t, func() bool { return a.Notify(ctx, second) == nil }, time.Second, time.Millisecond)
	assert.ErrorIs(t, a.Notify(ctx, third), notify.ErrQueueFull)
	assert.Less(t, time.Since(start), time.Second, "callers never wait on the channel")

	cancel()
	close(slow.release)
	require.NoError(t, a.Close())

	slow.mu.Lock()
	defer slow.mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, slow.got, "queued events outlive the request context")
	assert.True(t, slow.deadline)

	assert.ErrorIs(t, a.Notify(context.Background(), sampleEvent()), notify.ErrClosed)
	require.NoError(t, a.Close())
}
