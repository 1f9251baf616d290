package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/tandem/internal/ir"
	"github.com/roach88/tandem/internal/replica"
)

// Memory is an in-process channel. Publish calls every subscriber
// synchronously, in subscription order, before returning.
//
// Thread-safety: Memory is safe for concurrent use. Handlers run on the
// publishing goroutine and must not publish to the same channel.
type Memory struct {
	mu        sync.Mutex
	handlers  map[int]func(ir.Message)
	nextID    int
	published int
	wire      bool
}

// MemoryOption configures a Memory channel.
type MemoryOption func(*Memory)

// WithWireEncoding round-trips every message through the JSON wire format
// before delivery, so in-process runs exercise the same codec as Redis.
func WithWireEncoding() MemoryOption {
	return func(m *Memory) { m.wire = true }
}

// NewMemory creates an empty in-process channel.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{handlers: make(map[int]func(ir.Message))}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Publish delivers msg to every current subscriber.
func (m *Memory) Publish(ctx context.Context, msg ir.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.wire {
		data, err := ir.EncodeMessage(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		if msg, err = ir.DecodeMessage(data); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
	}

	m.mu.Lock()
	m.published++
	ids := make([]int, 0, len(m.handlers))
	for id := range m.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]func(ir.Message), len(ids))
	for i, id := range ids {
		handlers[i] = m.handlers[id]
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(msg.Clone())
	}
	return nil
}

// Subscribe registers handler for every later Publish.
func (m *Memory) Subscribe(handler func(ir.Message)) (replica.Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("subscribe: nil handler")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.handlers[id] = handler
	return &memorySubscription{m: m, id: id}, nil
}

// Published returns the number of messages published so far.
func (m *Memory) Published() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published
}

type memorySubscription struct {
	m    *Memory
	id   int
	once sync.Once
}

func (s *memorySubscription) Unsubscribe() {
	s.once.Do(func() {
		s.m.mu.Lock()
		delete(s.m.handlers, s.id)
		s.m.mu.Unlock()
	})
}
