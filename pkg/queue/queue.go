package queue

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
var ErrQueueFull = errors.New("queue is full")

// Queue is a FIFO handing items from producers (network readers) to a
// single consumer (a simulation loop).
type Queue[T any] interface {
	// Enqueue adds an item without blocking.
	Enqueue(item T) error
	// Dequeue blocks until an item is available or ctx is done.
	Dequeue(ctx context.Context) (T, error)
	Size() int
	// ReadAllMessages drains every pending item without blocking.
	ReadAllMessages() ([]T, error)
	ClearQueue()
}
