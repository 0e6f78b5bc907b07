// Package queue carries conditional evaluation updates from the reconciler to
// the worker pool.
package queue

import (
	"context"
	"sync"

	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Ack reports the outcome of one task back to its submitter.
type Ack struct {
	EventID string
	Event   model.EvaluationEvent
	Err     error
}

// Task is one conditional update. Ack must be buffered by the submitter so
// that workers never block on it.
type Task struct {
	EventID string
	Patch   model.EvaluationPatch
	Ack     chan<- Ack
}

// Reply delivers an outcome to the task's submitter, if any.
func (t Task) Reply(e model.EvaluationEvent, err error) {
	if t.Ack != nil {
		t.Ack <- Ack{EventID: t.EventID, Event: e, Err: err}
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a task. It fails with ErrFull or ErrClosed instead of
	// blocking.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue returns a channel that is closed once the queue is closed and
	// drained.
	Dequeue(ctx context.Context) <-chan Task

	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)
	return q
}

// Enqueue adds a task to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	select {
	case q.tasks <- t:
		metrics.UpdateQueueSize(len(q.tasks))
		return nil
	case <-ctx.Done():
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return ctx.Err()
	default:
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that will receive tasks as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Task {
	out := make(chan Task)
	go func() {
		defer close(out)
		for t := range q.tasks {
			select {
			case out <- t:
				metrics.UpdateQueueSize(len(q.tasks))
			case <-ctx.Done():
				t.Reply(model.EvaluationEvent{}, ctx.Err())
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued tasks.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.tasks)
}

// Close stops accepting tasks; queued tasks are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
