// Package queue holds background jobs until a worker picks them up.
//
// The in-memory implementation is a bounded channel; a full queue refuses new
// jobs instead of blocking the caller.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/arcadehub/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Job is one unit of background work. Run receives a context detached from
// the request that created the job. Drop, when set, is called instead of Run
// for a job that will never run, so its owner can settle it.
type Job struct {
	ID   string
	Name string
	Run  func(ctx context.Context)
	Drop func(err error)
}

// Abandon reports that j will not run.
func (j Job) Abandon(err error) {
	metrics.RecordQueueRejected("abandoned")
	if j.Drop != nil {
		j.Drop(fmt.Errorf("%w: %s: %v", ErrAbandoned, j.Name, err))
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. It returns ErrFull or ErrClosed instead of blocking.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue returns a channel that receives jobs as they become available.
	// The channel is closed when the queue is closed and empty. A job taken
	// from the queue after ctx is done is abandoned.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs. Queued jobs are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected("closed")
		return ErrClosed
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}

	select {
	case q.jobs <- j:
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	case <-ctx.Done():
		metrics.RecordQueueRejected("context_cancelled")
		return fmt.Errorf("enqueue %s: %w", j.Name, ctx.Err())
	default:
		metrics.RecordQueueRejected("full")
		return ErrFull
	}
}

// Dispatch enqueues run as a named job. drop is called if the job is
// accepted but never runs.
func (q *InMemoryQueue) Dispatch(ctx context.Context, name string, run func(ctx context.Context), drop func(err error)) error {
	return q.Enqueue(ctx, Job{Name: name, Run: run, Drop: drop})
}

// Dequeue returns a channel that will receive jobs as they become available.
// ctx is the consumer's lifetime: once it is done the job in hand is
// abandoned and forwarding stops; jobs still queued stay for other consumers.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.UpdateQueueSize(len(q.jobs))
			case <-ctx.Done():
				j.Abandon(ctx.Err())
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Capacity returns the maximum number of queued jobs.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
