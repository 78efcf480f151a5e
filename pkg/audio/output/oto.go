// ABOUTME: Oto-based audio device implementation
// ABOUTME: Plays each channel through its own oto player and watches for the end of playback
package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/chanmix/pkg/audio"
	"github.com/Resonate-Protocol/chanmix/pkg/audio/encode"
	"github.com/ebitengine/oto/v3"
	log "github.com/sirupsen/logrus"
)

// How often a watcher checks whether its player is still running
const pollInterval = 10 * time.Millisecond

// otoContext is the part of *oto.Context the device uses
type otoContext interface {
	NewPlayer(r io.Reader) *oto.Player
	Suspend() error
	Resume() error
}

// sharedContext owns the one oto context a process may create. Devices
// acquire it on Open and release it on Close; it is suspended while unused
// and resumed by the next Open, keeping the spec it was created with.
type sharedContext struct {
	mu     sync.Mutex
	ctx    otoContext
	spec   audio.Spec
	users  int
	create func(op *oto.NewContextOptions) (otoContext, error)
}

var currentContext = &sharedContext{create: newOtoContext}

func newOtoContext(op *oto.NewContextOptions) (otoContext, error) {
	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan
	return otoCtx, nil
}

// acquire returns the process context, creating it for spec on first use
func (s *sharedContext) acquire(spec audio.Spec) (otoContext, audio.Spec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		format, obtained := otoFormat(spec.Format)
		if obtained != spec.Format {
			log.Warnf("oto cannot play format 0x%04x, using 0x%04x", spec.Format, obtained)
			spec.Format = obtained
		}

		ctx, err := s.create(&oto.NewContextOptions{
			SampleRate:   spec.Frequency,
			ChannelCount: spec.Channels,
			Format:       format,
			BufferSize:   time.Duration(spec.ChunkSize) * time.Second / time.Duration(spec.Frequency),
		})
		if err != nil {
			return nil, audio.Spec{}, fmt.Errorf("failed to create oto context: %w", err)
		}
		s.ctx = ctx
		s.spec = spec
	} else if s.users == 0 {
		if err := s.ctx.Resume(); err != nil {
			return nil, audio.Spec{}, fmt.Errorf("failed to resume oto context: %w", err)
		}
	}

	if spec != s.spec {
		log.WithField("obtained", fmt.Sprintf("%+v", s.spec)).Debug("Audio context already open with another spec")
	}

	s.users++
	return s.ctx, s.spec, nil
}

// release drops one user and suspends the context when none remain
func (s *sharedContext) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.users == 0 {
		return nil
	}
	s.users--
	if s.users > 0 {
		return nil
	}
	if err := s.ctx.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend oto context: %w", err)
	}
	return nil
}

// Oto device implementation using the oto library
type Oto struct {
	channels

	// mu guards the fields set by Open and cleared by Close
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	otoCtx  otoContext
	encoder encode.Encoder
	spec    audio.Spec
	wg      sync.WaitGroup
	ready   atomic.Bool

	playersMu sync.Mutex
	players   map[int]*oto.Player
}

// NewOto creates a new Oto device
func NewOto() *Oto {
	return &Oto{
		players: make(map[int]*oto.Player),
	}
}

// otoFormat maps a device format word to an oto sample format.
// Formats oto cannot play fall back to signed 16-bit.
func otoFormat(format uint16) (oto.Format, uint16) {
	switch format {
	case audio.FormatU8:
		return oto.FormatUnsignedInt8, audio.FormatU8
	case audio.FormatF32LE:
		return oto.FormatFloat32LE, audio.FormatF32LE
	default:
		return oto.FormatSignedInt16LE, audio.FormatS16LE
	}
}

// Open initializes the output device. A closed device may be opened again.
func (o *Oto) Open(spec audio.Spec) (audio.Spec, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready.Load() {
		return o.spec, nil
	}

	otoCtx, obtained, err := currentContext.acquire(spec.WithDefaults())
	if err != nil {
		return audio.Spec{}, err
	}

	encoder, err := encode.New(obtained.Format)
	if err != nil {
		currentContext.release()
		return audio.Spec{}, err
	}

	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.otoCtx = otoCtx
	o.encoder = encoder
	o.spec = obtained
	o.ready.Store(true)

	log.WithFields(log.Fields{
		"rate":     obtained.Frequency,
		"format":   fmt.Sprintf("0x%04x", obtained.Format),
		"channels": obtained.Channels,
		"chunk":    obtained.ChunkSize,
	}).Info("Audio device opened")

	return obtained, nil
}

// PlayChannel starts chunk on channel and returns immediately
func (o *Oto) PlayChannel(channel int, chunk *audio.Chunk, loops int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready.Load() {
		return ErrNotOpen
	}
	if err := o.acquire(channel, chunk, loops); err != nil {
		return err
	}

	data, err := o.encoder.Encode(chunk.Samples)
	if err != nil {
		o.release(channel)
		return fmt.Errorf("encode failed: %w", err)
	}
	if loops > 0 {
		data = bytes.Repeat(data, loops+1)
	}

	player := o.otoCtx.NewPlayer(bytes.NewReader(data))

	o.playersMu.Lock()
	o.players[channel] = player
	o.playersMu.Unlock()

	player.Play()

	o.wg.Add(1)
	go o.watch(o.ctx, channel, player)

	return nil
}

// watch waits for the player to drain, then raises the finished signal
func (o *Oto) watch(ctx context.Context, channel int, player *oto.Player) {
	defer o.wg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	if err := player.Err(); err != nil {
		log.WithError(err).WithField("channel", channel).Warn("Player error")
	}

	o.playersMu.Lock()
	if o.players[channel] == player {
		delete(o.players, channel)
	}
	o.playersMu.Unlock()
	player.Close()

	o.finish(channel)
}

// Close halts all channels and releases the shared context.
// Finished hooks do not fire for halted channels.
func (o *Oto) Close() error {
	o.mu.Lock()
	if !o.ready.CompareAndSwap(true, false) {
		o.mu.Unlock()
		return nil
	}
	o.cancel()
	o.mu.Unlock()

	o.wg.Wait()

	o.playersMu.Lock()
	for ch, player := range o.players {
		player.Pause()
		player.Close()
		delete(o.players, ch)
	}
	o.playersMu.Unlock()

	o.reset()

	o.mu.Lock()
	o.otoCtx = nil
	o.encoder = nil
	o.mu.Unlock()

	return currentContext.release()
}
