// Package worker drains the run queue and executes calculator runs.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/citruscircuits/calcserver/internal/adapters/mq/queue"
	"github.com/citruscircuits/calcserver/pkg/logger"
	"github.com/citruscircuits/calcserver/pkg/metrics"
)

const (
	defaultRetryInitial    = 200 * time.Millisecond
	defaultRetryMaxElapsed = 30 * time.Second
	poolShutdownTimeout    = 30 * time.Second
)

// Handler executes dequeued run requests.
type Handler interface {
	// Begin is called once when a request leaves the queue.
	Begin(ctx context.Context, req queue.Request)
	// Handle runs the request. A failed run is retried in full.
	Handle(ctx context.Context, req queue.Request) error
}

// Queue defines how workers receive requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Request
}

// InMemoryWorker runs requests from a queue one at a time.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string

	retryInitial    time.Duration
	retryMaxElapsed time.Duration

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from q.
func NewInMemoryWorker(q Queue, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:           q,
		handler:         handler,
		name:            "worker",
		retryInitial:    defaultRetryInitial,
		retryMaxElapsed: defaultRetryMaxElapsed,
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes requests until ctx ends, Shutdown is called or the queue closes.
// After Shutdown, requests already queued are still run before Run returns.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.drain(ctx, requests)
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			w.handle(ctx, req)
		}
	}
}

// Shutdown stops the worker once the queued requests are done. It is safe to
// call more than once.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

func (w *InMemoryWorker) drain(ctx context.Context, requests <-chan queue.Request) {
	for {
		select {
		case req, ok := <-requests:
			if !ok {
				return
			}
			w.handle(ctx, req)
		default:
			return
		}
	}
}

func (w *InMemoryWorker) handle(ctx context.Context, req queue.Request) { //nolint:gocritic // hugeParam: requests travel by value
	if err := w.process(ctx, req); err != nil {
		w.logger.Error(ctx, "run failed after retries",
			logger.String("request_id", req.ID),
			logger.String("calculator", req.Calculator),
			logger.Error(err),
		)
	}
}

func (w *InMemoryWorker) process(ctx context.Context, req queue.Request) error { //nolint:gocritic // hugeParam: requests travel by value
	w.handler.Begin(ctx, req)

	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			metrics.RecordWorkerRetry()
		}
		err := w.handler.Handle(ctx, req)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		w.logger.Warn(ctx, "run failed, retrying",
			logger.String("request_id", req.ID),
			logger.String("calculator", req.Calculator),
			logger.Int("attempt", attempt),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(w.policy(), ctx), notify); err != nil {
		metrics.RecordWorkerError()
		return err
	}
	return nil
}

func (w *InMemoryWorker) policy() backoff.BackOff {
	if w.retryMaxElapsed <= 0 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.retryInitial
	b.MaxElapsedTime = w.retryMaxElapsed
	return b
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers. Options apply to every worker.
func NewPool(workerCount int, q Queue, handler Handler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, handler, workerOpts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, then waits for every worker to run what is left
// in it. Calling it again, or after a worker's own Shutdown, is a no-op.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	for _, w := range p.workers {
		w.stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker pool shutdown: %w", err)
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
