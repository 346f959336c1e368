// Package memory provides the bounded in-process bake queue used by the server.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/sitebaker/internal/site"
)

var (
	// ErrClosed is returned once the queue has been closed.
	ErrClosed = errors.New("queue closed")
	// ErrFull is returned by TryEnqueue when no slot is free.
	ErrFull = errors.New("queue full")
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch     chan site.QueueItem
	mu     sync.RWMutex
	closed bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{ch: make(chan site.QueueItem, capacity)}
}

// Enqueue pushes a bake into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, item site.QueueItem) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// TryEnqueue pushes a bake without blocking.
func (q *Queue) TryEnqueue(item site.QueueItem) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- item:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue pops the next bake, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (site.QueueItem, error) {
	select {
	case <-ctx.Done():
		return site.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return site.QueueItem{}, ErrClosed
		}
		return item, nil
	}
}

// Len reports the number of waiting bakes.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel. Pending items can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
