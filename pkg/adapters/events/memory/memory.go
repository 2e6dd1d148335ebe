package memory

import (
	"context"
	"sync"

	"github.com/aescanero/synapse/pkg/domain"
	"github.com/aescanero/synapse/pkg/ports"
)

// subscriptionBuffer bounds the events queued for one slow subscriber.
const subscriptionBuffer = 256

// InMemoryEventBus implements EventBus using in-process channels.
// Each subscription receives events in publish order on its own goroutine;
// events for a subscriber whose buffer is full are dropped.
type InMemoryEventBus struct {
	subscribers map[string]map[uint64]*subscription
	nextID      uint64
	mu          sync.RWMutex
}

type subscription struct {
	events chan domain.Event
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string]map[uint64]*subscription),
	}
}

// Publish publishes an event to all subscribers of a topic
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, sub := range e.subscribers[topic] {
		select {
		case sub.events <- event:
		case <-sub.done:
		default:
		}
	}
	return nil
}

// Subscribe subscribes to events on a topic until ctx is done.
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	sub := &subscription{
		events: make(chan domain.Event, subscriptionBuffer),
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	if e.subscribers[topic] == nil {
		e.subscribers[topic] = make(map[uint64]*subscription)
	}
	e.subscribers[topic][id] = sub
	e.mu.Unlock()

	go func() {
		defer e.unsubscribe(topic, id)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case event := <-sub.events:
				// Handler errors are the subscriber's concern.
				_ = handler(ctx, event)
			}
		}
	}()

	return nil
}

// SubscriberCount returns the number of live subscriptions on a topic.
func (e *InMemoryEventBus) SubscriberCount(topic string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers[topic])
}

// Close closes the event bus and stops every subscription
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, subs := range e.subscribers {
		for _, sub := range subs {
			sub.stop()
		}
	}
	e.subscribers = make(map[string]map[uint64]*subscription)
	return nil
}

// unsubscribe removes a subscription from a topic
func (e *InMemoryEventBus) unsubscribe(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sub, ok := e.subscribers[topic][id]; ok {
		sub.stop()
		delete(e.subscribers[topic], id)
		if len(e.subscribers[topic]) == 0 {
			delete(e.subscribers, topic)
		}
	}
}
