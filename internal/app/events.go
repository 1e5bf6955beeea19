package app

import (
	"context"
	"sync"

	"classroom-activity-service/internal/domain"
)

// Notifier receives change notifications for activity mutations. Delivery
// is best-effort: implementations must never block or fail the operation
// that triggered the event.
type Notifier interface {
	Publish(ctx context.Context, event domain.Event)
}

// EventHub fans activity events out to in-process subscribers (the
// websocket transport, tests). Slow subscribers lose the oldest pending
// event rather than blocking the publisher.
type EventHub struct {
	mu   sync.Mutex
	subs map[chan domain.Event]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan domain.Event]struct{})}
}

// Subscribe returns a channel of future events. The caller must invoke
// the returned cancel function to avoid leaks.
func (h *EventHub) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 8)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *EventHub) Publish(_ context.Context, event domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			// Drop the oldest pending event so a stalled subscriber never
			// blocks the mutation that published this one.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

// FanoutNotifier publishes to several sinks in order.
type FanoutNotifier []Notifier

func (f FanoutNotifier) Publish(ctx context.Context, event domain.Event) {
	for _, n := range f {
		n.Publish(ctx, event)
	}
}
