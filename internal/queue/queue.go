// Package queue carries run requests from the API to the scheduler workers.
package queue

import (
	"context"
	"errors"

	"btc-scenario-lab/internal/domain"
)

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = errors.New("queue closed")

// Message is a dequeued run request awaiting acknowledgement.
type Message struct {
	Request domain.RunRequest

	// backend-specific handle used by Ack
	handle any
}

// Queue is a FIFO of run requests with at-least-once delivery.
type Queue interface {
	// Enqueue appends a request. Blocks until accepted, ctx is done or the queue closes.
	Enqueue(ctx context.Context, req domain.RunRequest) error

	// Dequeue blocks for the next request.
	Dequeue(ctx context.Context) (*Message, error)

	// Ack marks a message as processed.
	Ack(ctx context.Context, msg *Message) error

	// Close releases resources. Pending Dequeue calls return ErrClosed.
	Close() error
}
