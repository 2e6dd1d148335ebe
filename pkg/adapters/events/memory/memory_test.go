package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/synapse/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) handle(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.events))
	for i, e := range r.events {
		ids[i] = e.ID
	}
	return ids
}

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewInMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	require.NoError(t, bus.Subscribe(ctx, domain.TopicNodeEvents, rec.handle))

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, bus.Publish(ctx, domain.TopicNodeEvents, domain.Event{ID: id}))
	}
	require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, domain.Event{ID: "other"}))

	assert.Eventually(t, func() bool { return len(rec.ids()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"e1", "e2", "e3"}, rec.ids())
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus := NewInMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, rec.handle))
	assert.Equal(t, 1, bus.SubscriberCount(domain.TopicRunEvents))

	cancel()
	assert.Eventually(t, func() bool { return bus.SubscriberCount(domain.TopicRunEvents) == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), domain.TopicRunEvents, domain.Event{ID: "late"}))
	assert.Empty(t, rec.ids())
}

func TestCloseStopsSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus()
	rec := &recorder{}
	require.NoError(t, bus.Subscribe(context.Background(), domain.TopicRunEvents, rec.handle))

	require.NoError(t, bus.Close())
	assert.Equal(t, 0, bus.SubscriberCount(domain.TopicRunEvents))
}
