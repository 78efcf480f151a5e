// ABOUTME: Serial event loop for completion callbacks
// ABOUTME: Runs posted functions one at a time on the goroutine that calls Run
package loop

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Post after the loop has been closed
var ErrClosed = errors.New("loop closed")

// Loop executes posted functions in order on a single goroutine.
// Post never blocks, so device and dispatcher goroutines can always hand off.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	running bool
}

// New creates an idle loop
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post queues fn to run on the loop goroutine
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run executes posted functions until ctx is done or Close is called.
// Only one Run may be active at a time.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("loop already running")
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		for _, fn := range l.take() {
			fn()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			// Run what was posted before Close
			for _, fn := range l.take() {
				fn()
			}
			return nil
		case <-l.wake:
		}
	}
}

// RunOnce executes everything queued right now and returns how many ran
func (l *Loop) RunOnce() int {
	batch := l.take()
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := l.queue
	l.queue = nil
	return batch
}

// Pending returns the number of queued functions
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close stops accepting posts and makes Run return
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
}

// Done is closed when the loop is closed
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
