package eventbus

import (
	"sync"
	"time"
)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a simple in-process pub/sub event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]subscription
	nextID   uint64
	inflight sync.WaitGroup
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[Topic][]subscription),
	}
}

// Subscribe registers a handler for a topic and returns a function that
// removes it again.
func (b *Bus) Subscribe(topic Topic, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[topic] = append(b.handlers[topic], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[topic]
		for i, s := range subs {
			if s.id == id {
				b.handlers[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) snapshot(topic Topic) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]Handler, len(b.handlers[topic]))
	for i, s := range b.handlers[topic] {
		handlers[i] = s.handler
	}
	return handlers
}

// Publish sends an event to all subscribers of the topic.
// Handlers are called synchronously in the order they were registered.
func (b *Bus) Publish(topic Topic, payload any) {
	event := Event{Topic: topic, Payload: payload, Timestamp: time.Now()}
	for _, h := range b.snapshot(topic) {
		h(event)
	}
}

// PublishAsync sends an event to all subscribers asynchronously.
// Wait blocks until those deliveries have finished.
func (b *Bus) PublishAsync(topic Topic, payload any) {
	event := Event{Topic: topic, Payload: payload, Timestamp: time.Now()}
	for _, h := range b.snapshot(topic) {
		b.inflight.Add(1)
		go func(h Handler) {
			defer b.inflight.Done()
			h(event)
		}(h)
	}
}

// Wait blocks until every PublishAsync delivery has returned.
func (b *Bus) Wait() {
	b.inflight.Wait()
}
