package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MemoryBroker is an in-process Broker with one bounded FIFO per queue.
// Messages do not survive a restart.
type MemoryBroker struct {
	mu       sync.RWMutex
	capacity int
	queues   map[RoutingKey]map[string]*memQueue
	done     chan struct{}
	closed   bool
}

func NewMemoryBroker(capacity int) *MemoryBroker {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryBroker{
		capacity: capacity,
		queues:   make(map[RoutingKey]map[string]*memQueue),
		done:     make(chan struct{}),
	}
}

type memMessage struct {
	data    []byte
	attempt int
}

type memQueue struct {
	name string
	ch   chan memMessage
	done <-chan struct{}
}

func (b *MemoryBroker) Publish(_ context.Context, key RoutingKey, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}
	var errs []error
	for _, q := range b.queues[key] {
		msg := memMessage{data: append([]byte(nil), payload...), attempt: 1}
		select {
		case q.ch <- msg:
		default:
			errs = append(errs, fmt.Errorf("queue %s: %w", q.name, ErrQueueFull))
		}
	}
	return errors.Join(errs...)
}

func (b *MemoryBroker) Bind(_ context.Context, key RoutingKey, queue string) (Queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	bound, ok := b.queues[key]
	if !ok {
		bound = make(map[string]*memQueue)
		b.queues[key] = bound
	}
	if q, ok := bound[queue]; ok {
		return q, nil
	}
	q := &memQueue{name: queue, ch: make(chan memMessage, b.capacity), done: b.done}
	bound[queue] = q
	return q, nil
}

// Depth reports how many messages wait in the named queue.
func (b *MemoryBroker) Depth(key RoutingKey, queue string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if q, ok := b.queues[key][queue]; ok {
		return len(q.ch)
	}
	return 0
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}

func (q *memQueue) Next(ctx context.Context) (Delivery, error) {
	select {
	case msg := <-q.ch:
		return &memDelivery{q: q, msg: msg}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, ErrBrokerClosed
	}
}

type memDelivery struct {
	q   *memQueue
	msg memMessage
}

func (d *memDelivery) Data() []byte { return d.msg.data }
func (d *memDelivery) Ack() error   { return nil }
func (d *memDelivery) Attempt() int { return d.msg.attempt }

// Nak puts the message back at the tail of its queue.
func (d *memDelivery) Nak() error {
	retry := memMessage{data: d.msg.data, attempt: d.msg.attempt + 1}
	select {
	case d.q.ch <- retry:
		return nil
	default:
		return fmt.Errorf("requeue on %s: %w", d.q.name, ErrQueueFull)
	}
}
