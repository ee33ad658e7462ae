package eventbus

import (
	"sync"

	"market-pulse/src/helpers"
	"market-pulse/src/logger"
)

// Handler consumes one published payload. A returned error or a panic is
// logged and never reaches the publisher.
type Handler func(payload any) error

type subscription struct {
	id      uint64
	handler Handler
}

// -----------------------------------------------------------------------------

// EventBus is an in-process publish/subscribe registry. Handlers for one event
// type run in subscription order; different types have no relative ordering.
type EventBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewEventBus(log *logger.Logger) *EventBus {
	if log == nil {
		log = logger.NewNop()
	}
	return &EventBus{
		subs:   make(map[string][]subscription),
		logger: log,
	}
}

// -----------------------------------------------------------------------------

// Subscribe registers h for eventType and returns a function that removes
// exactly this registration. Calling it more than once is a no-op.
func (b *EventBus) Subscribe(eventType string, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(eventType, id) })
	}
}

func (b *EventBus) unsubscribe(eventType string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[eventType]
	for i, s := range list {
		if s.id != id {
			continue
		}
		next := make([]subscription, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, eventType)
		} else {
			b.subs[eventType] = next
		}
		return
	}
}

// -----------------------------------------------------------------------------

// Publish calls every handler currently subscribed to eventType. Handlers run
// outside the lock, so they may subscribe or publish themselves.
func (b *EventBus) Publish(eventType string, payload any) {
	b.mu.RLock()
	list := b.subs[eventType]
	b.mu.RUnlock()

	for _, s := range list {
		h := s.handler
		if err := helpers.SafeCall(func() error { return h(payload) }); err != nil {
			b.logger.Error("handler for '%s' failed: %v", eventType, err)
		}
	}
}

// -----------------------------------------------------------------------------

// Clear removes the subscriptions of the given types, or all of them when
// called without arguments.
func (b *EventBus) Clear(eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(eventTypes) == 0 {
		b.subs = make(map[string][]subscription)
		return
	}
	for _, t := range eventTypes {
		delete(b.subs, t)
	}
}

// -----------------------------------------------------------------------------

func (b *EventBus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}
