package engine

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
)

// SubscriberID uniquely identifies an EventBus subscriber.
type SubscriberID uint64

// SubscriberFunc is a callback invoked when an event is emitted.
type SubscriberFunc func(Event)

const allEvents = ^uint64(0)

type subscriber struct {
	id   SubscriberID
	fn   SubscriberFunc
	mask uint64
}

func (s subscriber) wants(t EventType) bool {
	return s.mask&(1<<uint(t)) != 0
}

// EventBus dispatches engine events synchronously, in registration order, on
// the emitting goroutine. The subscriber list is copy-on-write, so Emit takes
// no lock and a subscriber may subscribe or unsubscribe from inside a callback.
type EventBus struct {
	mu     sync.Mutex // serializes writers
	subs   atomic.Pointer[[]subscriber]
	nextID SubscriberID
	clock  clockwork.Clock
}

// NewEventBus creates an EventBus stamping events with clock. A nil clock
// uses real time.
func NewEventBus(clock clockwork.Clock) *EventBus {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	eb := &EventBus{clock: clock}
	eb.subs.Store(&[]subscriber{})
	return eb
}

// Subscribe registers a callback for all event types.
func (eb *EventBus) Subscribe(fn SubscriberFunc) SubscriberID {
	return eb.add(fn, allEvents)
}

// SubscribeTypes registers a callback only for the given event types.
func (eb *EventBus) SubscribeTypes(fn SubscriberFunc, types ...EventType) SubscriberID {
	var mask uint64
	for _, t := range types {
		mask |= 1 << uint(t)
	}
	return eb.add(fn, mask)
}

func (eb *EventBus) add(fn SubscriberFunc, mask uint64) SubscriberID {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	cur := *eb.subs.Load()
	next := make([]subscriber, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, subscriber{id: eb.nextID, fn: fn, mask: mask})
	eb.subs.Store(&next)
	return eb.nextID
}

// Unsubscribe removes a subscriber by ID.
func (eb *EventBus) Unsubscribe(id SubscriberID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	cur := *eb.subs.Load()
	next := make([]subscriber, 0, len(cur))
	for _, s := range cur {
		if s.id != id {
			next = append(next, s)
		}
	}
	eb.subs.Store(&next)
}

// Emit dispatches an event to all matching subscribers. A panicking
// subscriber is logged and skipped; the rest still run.
func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = eb.clock.Now()
	}
	for _, s := range *eb.subs.Load() {
		if s.wants(evt.Type) {
			eb.call(s, evt)
		}
	}
}

func (eb *EventBus) call(s subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: subscriber %d panicked on %s event: %v", s.id, evt.Type.Name(), r)
		}
	}()
	s.fn(evt)
}
