package dream

import (
	"sync"

	"go.uber.org/zap"
)

// Listener receives progress events. Listeners are invoked synchronously
// and must not block.
type Listener func(ProgressEvent)

type busListener struct {
	id int
	fn Listener
}

// Bus is a process-wide publish/subscribe channel for progress events.
// Events from concurrent invocations are broadcast to every listener
// without partitioning; consumers needing per-invocation tracking must
// disambiguate by event fields.
type Bus struct {
	mu        sync.Mutex
	nextID    int
	listeners []busListener
	logger    *zap.Logger
}

// NewBus creates a new progress bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Calling unsubscribe more than once is a no-op.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, busListener{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, l := range b.listeners {
			if l.id == id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every registered listener in registration
// order. A panicking listener is isolated and logged; delivery to the
// remaining listeners continues.
func (b *Bus) Publish(event ProgressEvent) {
	b.mu.Lock()
	listeners := make([]busListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, l := range listeners {
		b.deliver(l, event)
	}
}

func (b *Bus) deliver(l busListener, event ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("progress listener panicked",
				zap.Int("listener_id", l.id),
				zap.Any("panic", r),
				zap.String("status", string(event.Status)))
		}
	}()
	l.fn(event)
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
