// Package eventbus provides the minimal named-event publish/subscribe
// facility used by the stream engine and the trader (spec.md §4.6). It is
// generalized from the teacher repo's per-purpose generic
// domain.Subscription[T] channel handles into a multi-topic bus, since a
// single symbol's engine publishes several distinct event kinds
// (orderbook_open, ticker_message, trade_message, ...) that no single
// generic channel type could carry.
package eventbus

import "sync"

// Handler receives the arguments published to a topic. Handlers run
// synchronously, in registration order, on the emitting goroutine — the
// same single-dispatcher-thread model spec.md §5 describes for the
// engine.
type Handler func(args ...any)

// Bus is a minimal named-event pub/sub. Zero value is not usable; use New.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
	}
}

// On registers handler to be invoked whenever name is emitted. Multiple
// handlers for the same name are invoked in registration order.
func (b *Bus) On(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

// Emit invokes every handler registered for name, synchronously, in
// registration order. Emit on a name with no subscribers is a no-op.
func (b *Bus) Emit(name string, args ...any) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[name]))
	copy(handlers, b.handlers[name])
	b.mu.RUnlock()

	for _, h := range handlers {
		h(args...)
	}
}

// Once registers a handler that fires at most once; after its first call
// the wrapper stays registered but does nothing. This is how the trader's readiness signal (spec.md §4.5,
// "edge-triggered ... fire exactly once when it flips") is implemented on
// top of the bus's plain On/Emit primitives, which do not build in
// one-shot semantics (spec.md §4.6).
func (b *Bus) Once(name string, handler Handler) {
	var fired bool
	var mu sync.Mutex

	b.On(name, func(args ...any) {
		mu.Lock()
		if fired {
			mu.Unlock()
			return
		}
		fired = true
		mu.Unlock()
		handler(args...)
	})
}
