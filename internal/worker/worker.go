// ABOUTME: Background job runner for playback work
// ABOUTME: Runs submitted jobs off the caller's goroutine in FIFO order
package worker

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrQueueFull is returned when the job queue has no room
	ErrQueueFull = errors.New("worker queue full")

	// ErrStopped is returned after Stop
	ErrStopped = errors.New("worker stopped")
)

// Job is a unit of background work
type Job interface {
	Run(ctx context.Context)
}

// JobFunc adapts a function to the Job interface
type JobFunc func(ctx context.Context)

// Run calls f(ctx)
func (f JobFunc) Run(ctx context.Context) {
	f(ctx)
}

// Stats tracks worker metrics
type Stats struct {
	Submitted int64
	Completed int64
	Rejected  int64
}

// Worker runs jobs on a fixed set of goroutines
type Worker struct {
	n     int
	queue chan Job

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stats   Stats
}

// New creates a worker with n goroutines and room for queueSize pending jobs
func New(n, queueSize int) *Worker {
	if n < 1 {
		n = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Worker{
		n:     n,
		queue: make(chan Job, queueSize),
	}
}

// Start launches the worker goroutines. Jobs run with a context derived from ctx.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.stopped {
		return
	}
	w.started = true

	ctx, w.cancel = context.WithCancel(ctx)
	for i := 0; i < w.n; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}

	log.WithField("workers", w.n).Debug("Worker started")
}

func (w *Worker) run(ctx context.Context, id int) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.queue:
			if !ok {
				return
			}
			job.Run(ctx)

			w.mu.Lock()
			w.stats.Completed++
			w.mu.Unlock()
		}
	}
}

// Submit queues job without blocking
func (w *Worker) Submit(job Job) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		w.stats.Rejected++
		return ErrStopped
	}

	select {
	case w.queue <- job:
		w.stats.Submitted++
		return nil
	default:
		w.stats.Rejected++
		return ErrQueueFull
	}
}

// Stop cancels pending work and waits for running jobs to return
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()

	log.WithField("pending", len(w.queue)).Debug("Worker stopped")
}

// Pending returns the number of queued jobs
func (w *Worker) Pending() int {
	return len(w.queue)
}

// Stats returns worker statistics
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
