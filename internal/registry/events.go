package registry

import (
	"sync"

	"github.com/coachpo/feedgate/internal/bus"
	"github.com/coachpo/feedgate/internal/integration"
)

// EventType enumerates the events the Registry emits (spec.md §4.5
// "Events").
type EventType string

const (
	EventInstanceCreated       EventType = "instanceCreated"
	EventInstanceStarted       EventType = "instanceStarted"
	EventInstanceStopped       EventType = "instanceStopped"
	EventInstanceDestroyed     EventType = "instanceDestroyed"
	EventInstanceStatusChange  EventType = "instanceStatusChange"
	EventInstanceDataProcessed EventType = "instanceDataProcessed"
)

// Event is delivered to every subscriber in emission order.
type Event struct {
	Type      EventType
	Name      string
	PrevState integration.State
	NewState  integration.State
	Record    *bus.Record
}

// EventHandler observes Registry events.
type EventHandler func(Event)

type eventBus struct {
	mu       sync.Mutex
	handlers []EventHandler
}

func (b *eventBus) subscribe(h EventHandler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// emit invokes every subscriber synchronously and in registration order;
// since the Registry serializes operations on a single instance name
// (spec.md §4.5 "Concurrency"), this also preserves emission order
// per instance.
func (b *eventBus) emit(evt Event) {
	b.mu.Lock()
	handlers := append([]EventHandler(nil), b.handlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
}
