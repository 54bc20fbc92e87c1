// Package worker runs queued background jobs on a fixed pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/arcadehub/internal/adapters/mq/queue"
	"github.com/okian/arcadehub/pkg/logger"
	"github.com/okian/arcadehub/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	defaultJobTimeout       = 10 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// ErrStopped is the cause given to jobs abandoned by a stopped worker.
var ErrStopped = errors.New("worker stopped")

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until its queue closes.
type Worker interface {
	// Run processes jobs until the queue closes or Shutdown is called.
	// Cancelling ctx does not stop it.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue. A job the worker
	// had taken but not started is abandoned.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	name       string
	jobTimeout time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		name:       "worker",
		jobTimeout: defaultJobTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop. Jobs queued before the caller's context was
// cancelled still run; only the queue closing or Shutdown end the loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	consumer, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	go func() {
		select {
		case <-w.shutdown:
			cancel()
		case <-consumer.Done():
		}
	}()

	jobs := w.queue.Dequeue(consumer)
	for {
		select {
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			select {
			case <-w.shutdown:
				j.Abandon(ErrStopped)
				return
			default:
			}
			w.process(ctx, j)
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job under a timeout that outlives the pool context, so a
// job that started is not cut short by shutdown.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerJobLatency(time.Since(start))
	}()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, "job panicked",
				logger.String("job", j.Name),
				logger.String("jobID", j.ID),
				logger.Any("panic", r),
			)
		}
	}()

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.jobTimeout)
	defer cancel()
	j.Run(jobCtx)
	w.logger.Debug(ctx, "job done",
		logger.String("job", j.Name),
		logger.String("jobID", j.ID),
		logger.Duration("took", time.Since(start)),
	)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. Options are applied to every worker.
func NewPool(workerCount int, q Queue, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and lets workers drain what is left. Workers still
// busy when ctx (capped at 30s) expires are told to stop, and every job left
// in the queue is abandoned so its owner sees a result.
func (p *Pool) Shutdown(ctx context.Context) error {
	closer, closable := p.queue.(interface{ Close() error })
	if closable {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			if err := w.Shutdown(shutdownCtx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil && closable {
		p.abandonQueued(ctx, firstErr)
	}
	metrics.UpdateWorkerCount(0)
	return firstErr
}

// abandonQueued drops whatever the stopped workers left behind. The queue is
// closed, so the dequeue channel ends once it is empty.
func (p *Pool) abandonQueued(ctx context.Context, cause error) {
	n := 0
	for j := range p.queue.Dequeue(context.WithoutCancel(ctx)) {
		j.Abandon(cause)
		n++
	}
	if n > 0 {
		p.logger.Warn(ctx, "abandoned queued jobs", logger.Int("count", n), logger.Error(cause))
	}
}
