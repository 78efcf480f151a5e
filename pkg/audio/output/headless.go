// ABOUTME: Headless audio device for hosts without sound hardware
// ABOUTME: Accepts any spec and finishes channels after the chunk duration
package output

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/chanmix/pkg/audio"
	log "github.com/sirupsen/logrus"
)

// Headless device that plays nothing
type Headless struct {
	channels

	realtime bool
	spec     audio.Spec
	open     atomic.Bool

	timersMu sync.Mutex
	timers   map[int]*time.Timer
}

// NewHeadless creates a headless device. With realtime set, channels
// finish after the chunk's playback duration; otherwise right away.
func NewHeadless(realtime bool) *Headless {
	return &Headless{
		realtime: realtime,
		timers:   make(map[int]*time.Timer),
	}
}

// Open accepts the requested spec as is
func (h *Headless) Open(spec audio.Spec) (audio.Spec, error) {
	h.spec = spec.WithDefaults()
	h.open.Store(true)

	log.WithFields(log.Fields{
		"rate":     h.spec.Frequency,
		"channels": h.spec.Channels,
		"realtime": h.realtime,
	}).Info("Headless audio device opened")

	return h.spec, nil
}

// PlayChannel schedules the finished signal for channel
func (h *Headless) PlayChannel(channel int, chunk *audio.Chunk, loops int) error {
	if !h.open.Load() {
		return ErrNotOpen
	}
	if err := h.acquire(channel, chunk, loops); err != nil {
		return err
	}

	var d time.Duration
	if h.realtime {
		d = chunk.Duration() * time.Duration(loops+1)
	}

	h.timersMu.Lock()
	h.timers[channel] = time.AfterFunc(d, func() {
		h.timersMu.Lock()
		delete(h.timers, channel)
		h.timersMu.Unlock()
		h.finish(channel)
	})
	h.timersMu.Unlock()

	return nil
}

// Close cancels pending finished signals
func (h *Headless) Close() error {
	h.timersMu.Lock()
	for ch, t := range h.timers {
		t.Stop()
		delete(h.timers, ch)
	}
	h.timersMu.Unlock()

	h.reset()
	h.open.Store(false)
	return nil
}
