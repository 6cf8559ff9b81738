package events

import (
	"context"
	"sync"
)

// Published is one recorded Publish call.
type Published struct {
	Stream string
	Event  Event
}

// MemoryBus is an in-process Publisher and Subscriber. Handlers run
// synchronously inside Publish.
type MemoryBus struct {
	mu        sync.Mutex
	handlers  map[string][]func(string, Event)
	published []Published
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]func(string, Event))}
}

func (b *MemoryBus) Publish(_ context.Context, stream string, event Event) error {
	b.mu.Lock()
	b.published = append(b.published, Published{Stream: stream, Event: event})
	hs := append([]func(string, Event){}, b.handlers[stream]...)
	b.mu.Unlock()

	for _, h := range hs {
		h(stream, event)
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, handler func(string, Event), streams ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range streams {
		b.handlers[s] = append(b.handlers[s], handler)
	}
	return nil
}

// Published returns a copy of everything published so far.
func (b *MemoryBus) Published() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Published(nil), b.published...)
}

// Types lists the event types published so far, in order.
func (b *MemoryBus) Types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.published))
	for _, p := range b.published {
		out = append(out, p.Event.Type)
	}
	return out
}
