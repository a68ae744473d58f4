package queue

import (
	"context"
	"fmt"
	"sync"
)

// MemoryQueue is a bounded in-process queue. Jobs still buffered when the
// process exits are lost; their documents stay in Processing.
type MemoryQueue struct {
	mu     sync.RWMutex
	ch     chan Request
	closed bool
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{ch: make(chan Request, size)}
}

// Enqueue never blocks; a full buffer yields ErrQueueFull.
func (q *MemoryQueue) Enqueue(ctx context.Context, req Request) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("%w (%d)", ErrQueueFull, cap(q.ch))
	}
}

func (q *MemoryQueue) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-q.ch:
			if !ok {
				return nil
			}
			h(ctx, req)
		}
	}
}

func (q *MemoryQueue) Depth() int {
	return len(q.ch)
}

// Close stops accepting work. Consumers drain what is buffered and return.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}
