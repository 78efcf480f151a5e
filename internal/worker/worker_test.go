// ABOUTME: Tests for the background job runner
// ABOUTME: Covers ordering, queue limits and shutdown
package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestJobsRunInOrder(t *testing.T) {
	w := New(1, 10)
	w.Start(context.Background())
	defer w.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		if err := w.Submit(JobFunc(func(ctx context.Context) {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})); err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

func TestSubmitDoesNotBlockWhenFull(t *testing.T) {
	w := New(1, 1)
	// Not started, so nothing drains the queue
	if err := w.Submit(JobFunc(func(context.Context) {})); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- w.Submit(JobFunc(func(context.Context) {})) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	if w.Stats().Rejected != 1 {
		t.Errorf("expected 1 rejected job, got %d", w.Stats().Rejected)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	w := New(1, 1)
	w.Start(context.Background())
	w.Stop()

	if err := w.Submit(JobFunc(func(context.Context) {})); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}

	// Stop is idempotent
	w.Stop()
}

func TestStopWaitsForRunningJob(t *testing.T) {
	w := New(1, 1)
	w.Start(context.Background())

	started := make(chan struct{})
	finished := make(chan struct{})
	w.Submit(JobFunc(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(finished)
	}))

	<-started
	w.Stop()

	select {
	case <-finished:
	default:
		t.Fatal("Stop returned before the running job finished")
	}
}

func TestStatsCountCompleted(t *testing.T) {
	w := New(2, 4)
	w.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		w.Submit(JobFunc(func(context.Context) { wg.Done() }))
	}
	wg.Wait()
	w.Stop()

	stats := w.Stats()
	if stats.Submitted != 4 || stats.Completed != 4 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
