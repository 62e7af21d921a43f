// Package worker runs queued store sessions on a fixed number of goroutines.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Job represents a task to be executed by a worker
type Job func(ctx context.Context) error

// ErrQueueFull is returned when the job queue is full
var ErrQueueFull = errors.New("worker pool queue is full")

// ErrStopped is returned when submitting to a stopped pool
var ErrStopped = errors.New("worker pool stopped")

// Pool manages a pool of workers to execute jobs
type Pool struct {
	queue   chan Job
	workers int
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool creates a new Pool. Jobs receive a context derived from parent
// that is cancelled when the pool is stopped forcefully.
func NewPool(parent context.Context, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(parent)
	return &Pool{
		queue:   make(chan Job, queueSize),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	slog.Info("starting worker pool", "workers", p.workers, "queue_size", cap(p.queue))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit adds a job to the queue. Returns ErrQueueFull if the queue is full.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting jobs and waits for queued jobs to drain. When ctx
// expires first, running jobs are cancelled and Stop returns ctx.Err().
func (p *Pool) Stop(ctx context.Context) error {
	slog.Info("stopping worker pool")
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		slog.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		slog.Warn("worker pool stopped with cancelled jobs")
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for job := range p.queue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic in worker", "worker_id", id, "panic", r)
				}
			}()

			if err := job(p.ctx); err != nil {
				slog.Error("job execution failed", "worker_id", id, "error", err)
			}
		}()
	}
}
