package game

import (
	"log"
	"sync"
)

// EventHandler receives published events. Handlers run synchronously on
// the publishing goroutine and must not block.
type EventHandler func(Event)

type subscription struct {
	id      uint64
	typ     EventType // EventTypeUnknown = all types
	handler EventHandler
}

// EventBus is a small in-process fire-and-forget pub/sub.
// A panicking handler is logged and skipped; the others still run.
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers handler for events of type t and returns a function
// that removes it.
func (b *EventBus) Subscribe(t EventType, handler EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	subs := make([]subscription, len(b.subs), len(b.subs)+1)
	copy(subs, b.subs)
	b.subs = append(subs, subscription{id: id, typ: t, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// SubscribeAll registers handler for every event type.
func (b *EventBus) SubscribeAll(handler EventHandler) (unsubscribe func()) {
	return b.Subscribe(EventTypeUnknown, handler)
}

func (b *EventBus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.id != id {
			subs = append(subs, s)
		}
	}
	b.subs = subs
}

// Publish delivers ev to every matching subscriber. The subscriber list is
// copy-on-write, so handlers may subscribe or unsubscribe while running.
func (b *EventBus) Publish(ev Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		if s.typ != EventTypeUnknown && s.typ != ev.Type {
			continue
		}
		b.deliver(s.handler, ev)
	}
}

func (b *EventBus) deliver(h EventHandler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ Event handler for %s panicked: %v", ev.Type, r)
		}
	}()
	h(ev)
}

// SubscriberCount returns the number of registered handlers.
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
