// ABOUTME: Tests for the serial event loop
// ABOUTME: Covers ordering, single-goroutine execution and shutdown
package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunExecutesInPostOrder(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		i := i
		l.Post(func() {
			order = append(order, i)
			if i == 9 {
				close(done)
			}
		})
	}

	go l.Run(ctx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for posted functions")
	}

	for i, v := range order {
		if v != i {
			t.Fatalf("expected post order, got %v", order)
		}
	}
}

func TestPostFromManyGoroutines(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	const n = 200
	var wg sync.WaitGroup
	count := 0 // only touched on the loop goroutine
	all := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Post(func() {
				count++
				if count == n {
					close(all)
				}
			})
		}()
	}
	wg.Wait()

	select {
	case <-all:
	case <-time.After(2 * time.Second):
		t.Fatal("not every posted function ran")
	}
}

func TestRunStopsOnContext(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCloseFlushesAndRejects(t *testing.T) {
	l := New()

	ran := false
	l.Post(func() { ran = true })
	l.Close()

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("expected queued function to run before Run returned")
	}
	if err := l.Post(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Close is idempotent
	l.Close()
}

func TestRunOnce(t *testing.T) {
	l := New()
	l.Post(func() {})
	l.Post(func() {})

	if n := l.RunOnce(); n != 2 {
		t.Errorf("expected 2 functions, got %d", n)
	}
	if l.Pending() != 0 {
		t.Errorf("expected empty queue, got %d", l.Pending())
	}
}
