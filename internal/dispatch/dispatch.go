// ABOUTME: Completion dispatcher bridging device goroutines to the event loop
// ABOUTME: Exists only while channels are busy and delivers each finished signal once
package dispatch

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// State of the dispatcher
type State int

const (
	// Absent means no dispatcher goroutine exists
	Absent State = iota
	// Active means signals are accepted and delivered
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "absent"
}

// Completion reports that playback on a channel ended
type Completion struct {
	Channel int
	// Err is set when the job failed before or instead of playing
	Err error
}

// Stats tracks dispatcher metrics
type Stats struct {
	Delivered int64
	Dropped   int64
	Abandoned int64
	Starts    int64
	Stops     int64
}

// Dispatcher forwards completions from any goroutine to deliver, which
// runs on the dispatcher's own goroutine
type Dispatcher struct {
	capacity int
	deliver  func(Completion)

	mu    sync.Mutex
	state State
	queue chan Completion
	quit  chan struct{}
	done  chan struct{}
	stats Stats
}

// New creates an absent dispatcher. capacity bounds the number of
// undelivered completions; deliver must not block for long.
func New(capacity int, deliver func(Completion)) *Dispatcher {
	if capacity < 1 {
		capacity = 1
	}
	return &Dispatcher{
		capacity: capacity,
		deliver:  deliver,
	}
}

// Start moves Absent to Active. It reports false if already active.
func (d *Dispatcher) Start() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == Active {
		return false
	}

	d.state = Active
	d.queue = make(chan Completion, d.capacity)
	d.quit = make(chan struct{})
	d.done = make(chan struct{})
	d.stats.Starts++

	go d.drain(d.queue, d.quit, d.done)

	log.Debug("Completion dispatcher started")
	return true
}

func (d *Dispatcher) drain(queue <-chan Completion, quit, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-quit:
			return
		case c := <-queue:
			d.deliver(c)

			d.mu.Lock()
			d.stats.Delivered++
			d.mu.Unlock()
		}
	}
}

// Signal enqueues c without blocking. It reports false when the
// dispatcher is absent or its queue is full.
func (d *Dispatcher) Signal(c Completion) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != Active {
		d.stats.Dropped++
		log.WithField("channel", c.Channel).Debug("Completion signal with no dispatcher, dropped")
		return false
	}

	select {
	case d.queue <- c:
		return true
	default:
		d.stats.Dropped++
		log.WithField("channel", c.Channel).Warn("Completion queue full, signal dropped")
		return false
	}
}

// Stop moves Active to Absent and waits for the dispatcher goroutine.
// Completions still queued are abandoned; the count is returned.
// Stop must not be called from inside deliver.
func (d *Dispatcher) Stop() int {
	d.mu.Lock()
	if d.state != Active {
		d.mu.Unlock()
		return 0
	}
	d.state = Absent
	queue, quit, done := d.queue, d.quit, d.done
	d.queue = nil
	d.stats.Stops++
	d.mu.Unlock()

	close(quit)
	<-done

	abandoned := len(queue)
	if abandoned > 0 {
		d.mu.Lock()
		d.stats.Abandoned += int64(abandoned)
		d.mu.Unlock()
		log.WithField("abandoned", abandoned).Warn("Completion dispatcher stopped with queued signals")
	}

	log.Debug("Completion dispatcher stopped")
	return abandoned
}

// State returns the current state
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Active reports whether the dispatcher exists
func (d *Dispatcher) Active() bool {
	return d.State() == Active
}

// Stats returns dispatcher statistics
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
