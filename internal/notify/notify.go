// Package notify provides change notification for binding updates.
//
// Multiple UI surfaces (settings window, floating dock, tray menu) observe
// the same binding state; the hub fans mutation events out to them so each
// can refresh without polling.
package notify

import (
	"sync"

	"github.com/dshills/switchkey/internal/accel"
	"github.com/dshills/switchkey/internal/store"
)

// EventType identifies what changed.
type EventType int

const (
	// BindingSet indicates an identity binding was created or updated.
	BindingSet EventType = iota

	// BindingRemoved indicates an identity binding was deleted.
	BindingRemoved

	// GlobalSet indicates a global action binding was created or updated.
	GlobalSet

	// GlobalRemoved indicates a global action binding was deleted.
	GlobalRemoved

	// DocumentReloaded indicates the whole document was replaced
	// (external edit, restore, or import).
	DocumentReloaded
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case BindingSet:
		return "bindingSet"
	case BindingRemoved:
		return "bindingRemoved"
	case GlobalSet:
		return "globalSet"
	case GlobalRemoved:
		return "globalRemoved"
	case DocumentReloaded:
		return "documentReloaded"
	default:
		return "unknown"
	}
}

// Event is one binding change.
type Event struct {
	Type EventType

	// Identity is set for binding events.
	Identity store.Identity

	// GlobalType is set for global binding events.
	GlobalType string

	// Accelerator is the new value for set events.
	Accelerator accel.Accelerator

	// Source identifies where the change came from.
	Source string
}

// Observer is called when a change occurs.
type Observer func(event Event)

// Subscription is an active observer registration.
type Subscription struct {
	id  uint64
	hub *Hub
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s.hub != nil {
		s.hub.unsubscribe(s.id)
	}
}

type observerEntry struct {
	observer Observer

	// filtered limits delivery to one event type.
	filtered bool
	only     EventType
}

// Hub manages change subscriptions and fan-out.
type Hub struct {
	mu        sync.RWMutex
	observers map[uint64]observerEntry
	nextID    uint64

	async  bool
	buffer chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithAsync enables buffered asynchronous delivery.
func WithAsync(bufferSize int) Option {
	return func(h *Hub) {
		if bufferSize > 0 {
			h.async = true
			h.buffer = make(chan Event, bufferSize)
		}
	}
}

// NewHub creates a notification hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		observers: make(map[uint64]observerEntry),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.async {
		h.wg.Add(1)
		go h.processAsync()
	}
	return h
}

// Subscribe registers an observer for all events.
func (h *Hub) Subscribe(observer Observer) *Subscription {
	return h.add(observerEntry{observer: observer})
}

// SubscribeType registers an observer for one event type.
func (h *Hub) SubscribeType(t EventType, observer Observer) *Subscription {
	return h.add(observerEntry{observer: observer, filtered: true, only: t})
}

func (h *Hub) add(entry observerEntry) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.observers[id] = entry
	return &Subscription{id: id, hub: h}
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.observers, id)
}

// Publish delivers an event to all matching observers.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	if h.async {
		select {
		case h.buffer <- event:
		case <-h.done:
		}
		return
	}
	h.deliver(event)
}

// Close shuts down the hub. Safe to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	close(h.done)
	h.wg.Wait()
}

// deliver calls observers outside the lock.
func (h *Hub) deliver(event Event) {
	h.mu.RLock()
	var observers []Observer
	for _, entry := range h.observers {
		if entry.filtered && entry.only != event.Type {
			continue
		}
		observers = append(observers, entry.observer)
	}
	h.mu.RUnlock()

	for _, obs := range observers {
		obs(event)
	}
}

func (h *Hub) processAsync() {
	defer h.wg.Done()

	for {
		select {
		case event := <-h.buffer:
			h.deliver(event)
		case <-h.done:
			for {
				select {
				case event := <-h.buffer:
					h.deliver(event)
				default:
					return
				}
			}
		}
	}
}
