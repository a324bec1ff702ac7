package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/warp/outpass-engine/workflow"
)

// ErrQueueClosed is returned by Publish after Close.
var ErrQueueClosed = errors.New("notify queue closed")

// Queue is a buffered in-process workflow.Publisher drained by a Worker.
type Queue struct {
	mu     sync.RWMutex
	ch     chan workflow.Event
	closed bool
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{ch: make(chan workflow.Event, size)}
}

// Publish enqueues events, blocking while the buffer is full.
func (q *Queue) Publish(ctx context.Context, events ...workflow.Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	for _, e := range events {
		select {
		case q.ch <- e:
			QueueDepth.Inc()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Events is the receive side for the worker.
func (q *Queue) Events() <-chan workflow.Event {
	return q.ch
}

// Close stops accepting events. Buffered events stay readable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
