// Package events provides a lightweight pub/sub event bus for session
// observability: the client/server event log, status changes, transcript
// updates, handoffs and tool calls.
package events

import (
	"sync"

	"github.com/tccoin/museum-agent/runtime/logger"
)

const defaultEventBufferSize = 1024

// Listener is a function that handles events.
type Listener func(*Event)

// BusOption configures an EventBus.
type BusOption func(*EventBus)

// WithEventBufferSize sets the backlog beyond which raw protocol events
// (client.event, server.event) are shed. Non-positive values are ignored.
func WithEventBufferSize(n int) BusOption {
	return func(eb *EventBus) {
		if n > 0 {
			eb.bufferSize = n
		}
	}
}

type subscription struct {
	id       uint64
	listener Listener
}

// EventBus manages event distribution to listeners. Events are delivered by a
// single worker, so every listener observes them in publish order.
//
// Only raw protocol events may be dropped, and only while the backlog exceeds
// the buffer size. State events (status, channel, transcript, handoff and
// tool events) are always delivered.
type EventBus struct {
	mu              sync.RWMutex
	listeners       map[EventType][]subscription
	globalListeners []subscription
	nextID          uint64

	bufferSize int
	qmu        sync.Mutex
	pending    []*Event
	closed     bool
	sequence   int64
	wake       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

// NewEventBus creates a new event bus and starts its worker.
func NewEventBus(opts ...BusOption) *EventBus {
	eb := &EventBus{
		listeners:  make(map[EventType][]subscription),
		bufferSize: defaultEventBufferSize,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(eb)
	}
	go eb.run()
	return eb
}

// Subscribe registers a listener for a specific event type and returns a
// function that removes it.
func (eb *EventBus) Subscribe(eventType EventType, listener Listener) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eb.nextID
	eb.listeners[eventType] = append(eb.listeners[eventType], subscription{id: id, listener: listener})
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		eb.listeners[eventType] = without(eb.listeners[eventType], id)
	}
}

// SubscribeAll registers a listener for all event types and returns a
// function that removes it.
func (eb *EventBus) SubscribeAll(listener Listener) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eb.nextID
	eb.globalListeners = append(eb.globalListeners, subscription{id: id, listener: listener})
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		eb.globalListeners = without(eb.globalListeners, id)
	}
}

// Publish queues an event for delivery. It never blocks: false is returned
// when the bus is closed, or when a sheddable event meets a full backlog.
func (eb *EventBus) Publish(event *Event) bool {
	if event == nil {
		return false
	}
	eb.qmu.Lock()
	if eb.closed {
		eb.qmu.Unlock()
		return false
	}
	if len(eb.pending) >= eb.bufferSize && sheddable(event.Type) {
		eb.qmu.Unlock()
		logger.Warn("event bus backlog full, dropping event", "type", event.Type)
		return false
	}
	eb.sequence++
	event.Sequence = eb.sequence
	eb.pending = append(eb.pending, event)
	eb.qmu.Unlock()

	select {
	case eb.wake <- struct{}{}:
	default:
	}
	return true
}

// Backlog reports how many events are waiting for delivery.
func (eb *EventBus) Backlog() int {
	eb.qmu.Lock()
	defer eb.qmu.Unlock()
	return len(eb.pending)
}

// Close stops accepting events, delivers everything already queued and
// waits for the worker to exit. It is idempotent.
func (eb *EventBus) Close() {
	eb.closeOnce.Do(func() {
		eb.qmu.Lock()
		eb.closed = true
		eb.qmu.Unlock()
		select {
		case eb.wake <- struct{}{}:
		default:
		}
		<-eb.done
	})
}

// sheddable reports whether an event may be dropped under backpressure.
func sheddable(t EventType) bool {
	return t == EventClientEvent || t == EventServerEvent
}

// Clear removes all listeners (primarily for tests).
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners = make(map[EventType][]subscription)
	eb.globalListeners = nil
}

func (eb *EventBus) run() {
	defer close(eb.done)
	for {
		eb.qmu.Lock()
		batch := eb.pending
		eb.pending = nil
		closed := eb.closed
		eb.qmu.Unlock()

		for _, event := range batch {
			eb.deliver(event)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-eb.wake
	}
}

func (eb *EventBus) deliver(event *Event) {
	eb.mu.RLock()
	specific := append([]subscription(nil), eb.listeners[event.Type]...)
	global := append([]subscription(nil), eb.globalListeners...)
	eb.mu.RUnlock()

	for _, s := range specific {
		safeInvoke(s.listener, event)
	}
	for _, s := range global {
		safeInvoke(s.listener, event)
	}
}

func without(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

func safeInvoke(listener Listener, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event listener panicked", "type", event.Type, "panic", r)
		}
	}()
	listener(event)
}
