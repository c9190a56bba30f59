package queue

import (
	"context"
	"sync"

	"btc-scenario-lab/internal/domain"
)

// DefaultMemoryCapacity is the buffer size used when none is given.
const DefaultMemoryCapacity = 256

// MemoryQueue is an in-process Queue backed by a buffered channel.
type MemoryQueue struct {
	ch   chan domain.RunRequest
	done chan struct{}
	once sync.Once
}

// NewMemoryQueue creates a MemoryQueue. A non-positive capacity uses DefaultMemoryCapacity.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryQueue{
		ch:   make(chan domain.RunRequest, capacity),
		done: make(chan struct{}),
	}
}

// Compile-time interface check.
var _ Queue = (*MemoryQueue)(nil)

// Enqueue appends a request.
func (q *MemoryQueue) Enqueue(ctx context.Context, req domain.RunRequest) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- req:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks for the next request.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Message, error) {
	select {
	case req := <-q.ch:
		return &Message{Request: req}, nil
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack is a no-op: a dequeued message is already removed.
func (q *MemoryQueue) Ack(context.Context, *Message) error {
	return nil
}

// Len returns the number of buffered requests.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// Close stops the queue. Buffered requests are dropped.
func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
