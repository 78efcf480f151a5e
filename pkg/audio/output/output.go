// ABOUTME: Audio device interface definition
// ABOUTME: Common interface and channel bookkeeping for playback backends
package output

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/chanmix/pkg/audio"
)

var (
	// ErrNotOpen is returned when a device is used before Open
	ErrNotOpen = errors.New("output device not open")

	// ErrInvalidChannel is returned for channels outside the allocated range
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrChannelBusy is returned when a channel is still playing
	ErrChannelBusy = errors.New("channel is busy")

	// ErrNoChunk is returned when asked to play a nil or freed chunk
	ErrNoChunk = errors.New("no chunk to play")
)

// Device represents a multi-channel audio output
type Device interface {
	// Open initializes the device and returns the spec actually obtained
	Open(spec audio.Spec) (audio.Spec, error)

	// AllocateChannels sets the number of playback channels and returns it
	AllocateChannels(n int) int

	// PlayChannel starts chunk on channel. loops counts extra repetitions.
	PlayChannel(channel int, chunk *audio.Chunk, loops int) error

	// OnChannelFinished registers the hook called from a device goroutine
	// whenever a channel stops playing
	OnChannelFinished(fn func(channel int))

	// Close halts playback and releases device resources
	Close() error
}

// channels tracks which channels are playing and the finished hook.
// Backends embed it.
type channels struct {
	mu       sync.Mutex
	playing  []bool
	finished func(channel int)
}

func (c *channels) AllocateChannels(n int) int {
	if n < 0 {
		n = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	playing := make([]bool, n)
	copy(playing, c.playing)
	c.playing = playing
	return n
}

func (c *channels) OnChannelFinished(fn func(channel int)) {
	c.mu.Lock()
	c.finished = fn
	c.mu.Unlock()
}

// acquire marks channel as playing after validating the request
func (c *channels) acquire(channel int, chunk *audio.Chunk, loops int) error {
	if chunk == nil || chunk.Freed() {
		return ErrNoChunk
	}
	if loops < 0 {
		return fmt.Errorf("unsupported loop count: %d", loops)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if channel < 0 || channel >= len(c.playing) {
		return fmt.Errorf("%w: %d (allocated %d)", ErrInvalidChannel, channel, len(c.playing))
	}
	if c.playing[channel] {
		return fmt.Errorf("%w: %d", ErrChannelBusy, channel)
	}
	c.playing[channel] = true
	return nil
}

// finish clears the playing flag and fires the hook once
func (c *channels) finish(channel int) {
	c.mu.Lock()
	if channel >= len(c.playing) || !c.playing[channel] {
		c.mu.Unlock()
		return
	}
	c.playing[channel] = false
	fn := c.finished
	c.mu.Unlock()

	if fn != nil {
		fn(channel)
	}
}

// release frees a channel that never started, without firing the hook
func (c *channels) release(channel int) {
	c.mu.Lock()
	if channel >= 0 && channel < len(c.playing) {
		c.playing[channel] = false
	}
	c.mu.Unlock()
}

// Playing reports whether channel is currently playing
func (c *channels) Playing(channel int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return channel >= 0 && channel < len(c.playing) && c.playing[channel]
}

// reset clears all playing flags without firing the hook
func (c *channels) reset() {
	c.mu.Lock()
	for i := range c.playing {
		c.playing[i] = false
	}
	c.mu.Unlock()
}
