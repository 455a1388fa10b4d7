package event

import (
	"context"
	"sync"
)

// Handler receives a dispatched event. A returned error aborts the
// remaining handlers for that event and propagates to the dispatcher's
// caller.
type Handler func(ctx context.Context, ev Context) error

// Dispatcher maps event kinds to ordered handler lists. Registration
// happens at startup; dispatch is synchronous and in registration order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Kind][]Handler)}
}

// Register appends a handler for the given event kind.
func (d *Dispatcher) Register(kind Kind, h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], h)
}

// Dispatch invokes every handler registered for the event's kind, in
// order. Dispatching a kind with no handlers is a no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Context) error {
	d.mu.RLock()
	handlers := d.handlers[ev.Kind]
	d.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
