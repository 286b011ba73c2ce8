// Package pubsub provides progress fan-out backends behind the
// core.Publisher and core.Subscriber ports. The memory backend serves a
// single process; the NATS backend spans processes.
package pubsub

import (
	"context"
	"sync"

	"github.com/slidewise/deckd/internal/core"
)

// MemoryBroker is an in-process Publisher/Subscriber pair. Handlers run
// synchronously on the publishing goroutine.
type MemoryBroker struct {
	mu       sync.RWMutex
	handlers map[string]map[int]func(payload []byte)
	nextID   int
	closed   bool
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{handlers: make(map[string]map[int]func([]byte))}
}

// Publish implements core.Publisher.
func (b *MemoryBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return core.ErrState(core.CodeInvalidState, "broker is closed")
	}
	for _, handler := range b.handlers[channel] {
		handler(payload)
	}
	return nil
}

// Subscribe implements core.Subscriber.
func (b *MemoryBroker) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, core.ErrState(core.CodeInvalidState, "broker is closed")
	}
	if b.handlers[channel] == nil {
		b.handlers[channel] = make(map[int]func([]byte))
	}
	id := b.nextID
	b.nextID++
	b.handlers[channel][id] = handler

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[channel], id)
	}
	return cancel, nil
}

// Close implements core.Publisher.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string]map[int]func([]byte))
	return nil
}
