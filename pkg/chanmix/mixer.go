// ABOUTME: Mixer facade coordinating pool, worker, dispatcher and event loop
// ABOUTME: Accepts play requests and delivers exactly one completion per request
package chanmix

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/chanmix/internal/dispatch"
	"github.com/Resonate-Protocol/chanmix/internal/loop"
	"github.com/Resonate-Protocol/chanmix/internal/pool"
	"github.com/Resonate-Protocol/chanmix/internal/worker"
	"github.com/Resonate-Protocol/chanmix/pkg/audio"
	"github.com/Resonate-Protocol/chanmix/pkg/audio/decode"
	"github.com/Resonate-Protocol/chanmix/pkg/audio/output"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Callback is invoked once per accepted request. err is nil when the
// file played to the end.
type Callback func(file string, channel int, err error)

// request is one accepted play call
type request struct {
	id      string
	file    string
	channel int
	onDone  Callback
	started time.Time
	chunk   atomic.Pointer[audio.Chunk]
}

// Mixer plays files on pooled device channels
type Mixer struct {
	config     Config
	device     output.Device
	loader     Loader
	spec       audio.Spec
	pool       *pool.Pool
	table      *pool.Table[request]
	dispatcher *dispatch.Dispatcher
	worker     *worker.Worker
	loop       *loop.Loop
	ctx        context.Context
	cancel     context.CancelFunc

	// mu orders table and pool changes with dispatcher start and stop
	mu     sync.Mutex
	closed bool
}

// New opens the device and allocates the channel pool
func New(config Config) (*Mixer, error) {
	config = config.withDefaults()

	obtained, err := config.Device.Open(config.deviceSpec())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}

	n := config.Device.AllocateChannels(config.MixChannels)
	if n <= 0 {
		config.Device.Close()
		return nil, fmt.Errorf("%w: device allocated no channels", ErrInit)
	}

	policy := pool.ClaimAny
	if config.ReserveLastChannel {
		policy = pool.ReserveLast
	}

	loader := config.Loader
	if loader == nil {
		loader = decode.NewLoader(config.FS, obtained)
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Mixer{
		config: config,
		device: config.Device,
		loader: loader,
		spec:   obtained,
		pool:   pool.New(n, policy),
		table:  pool.NewTable[request](n),
		worker: worker.New(config.Workers, n),
		loop:   loop.New(),
		ctx:    ctx,
		cancel: cancel,
	}
	m.dispatcher = dispatch.New(n+dispatchSlack, m.post)

	m.device.OnChannelFinished(m.channelFinished)
	m.worker.Start(ctx)

	log.WithFields(log.Fields{
		"rate":     obtained.Frequency,
		"bits":     obtained.BitDepth(),
		"layout":   obtained.Layout(),
		"channels": n,
		"policy":   policy,
	}).Info("Mixer ready")

	return m, nil
}

// Spec returns a copy of the opened device parameters. Changing the
// returned value has no effect on the mixer.
func (m *Mixer) Spec() Spec {
	return Spec{
		AudioRate:             m.spec.Frequency,
		AudioFormat:           m.spec.BitDepth(),
		AudioChannels:         m.spec.Layout(),
		NumberOfAudioChannels: m.pool.Size(),
	}
}

// Play claims a channel and starts file on it in the background.
// It returns file once the request is accepted; onDone may be nil.
func (m *Mixer) Play(file string, onDone Callback) (string, error) {
	if file == "" {
		return "", fmt.Errorf("%w: file name is required", ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrClosed
	}

	ch := m.pool.Claim()
	if ch == pool.Empty {
		return "", ErrResourceExhausted
	}

	req := &request{
		id:      uuid.New().String(),
		file:    file,
		channel: ch,
		onDone:  onDone,
		started: time.Now(),
	}

	if err := m.table.Set(ch, req); err != nil {
		m.pool.Release(ch)
		return "", fmt.Errorf("claim channel %d: %w", ch, err)
	}

	if m.dispatcher.Start() {
		log.Debug("Busy period started")
	}

	if err := m.worker.Submit(playbackJob{mixer: m, req: req}); err != nil {
		m.table.Take(ch)
		m.pool.Release(ch)
		if m.pool.IsFullyIdle() {
			m.dispatcher.Stop()
		}
		return "", fmt.Errorf("submit %s: %w", file, err)
	}

	log.WithFields(log.Fields{
		"id":      req.id,
		"file":    file,
		"channel": ch,
	}).Debug("Play accepted")

	return file, nil
}

// Run executes completion callbacks on the calling goroutine until ctx
// is done or the mixer is closed
func (m *Mixer) Run(ctx context.Context) error {
	return m.loop.Run(ctx)
}

// channelFinished is the device hook, called from a device goroutine
func (m *Mixer) channelFinished(channel int) {
	m.dispatcher.Signal(dispatch.Completion{Channel: channel})
}

// inject reports a job failure through the same path as a device signal
func (m *Mixer) inject(channel int, err error) {
	if !m.dispatcher.Signal(dispatch.Completion{Channel: channel, Err: err}) {
		m.reportError(err)
	}
}

// post hands a completion to the event loop; runs on the dispatcher goroutine
func (m *Mixer) post(c dispatch.Completion) {
	if err := m.loop.Post(func() { m.complete(c) }); err != nil {
		log.WithField("channel", c.Channel).Debug("Completion after loop closed, dropped")
	}
}

// complete runs on the event loop
func (m *Mixer) complete(c dispatch.Completion) {
	m.mu.Lock()
	req := m.table.Take(c.Channel)
	if req == nil {
		m.mu.Unlock()
		log.WithField("channel", c.Channel).Debug("Stray completion ignored")
		return
	}

	if err := m.pool.Release(c.Channel); err != nil {
		log.WithError(err).Warn("Channel release failed")
	}
	if m.pool.IsFullyIdle() {
		m.dispatcher.Stop()
		log.Debug("Busy period ended")
	}
	m.mu.Unlock()

	defer func() {
		if chunk := req.chunk.Load(); chunk != nil {
			chunk.Free()
		}
	}()

	log.WithFields(log.Fields{
		"id":      req.id,
		"file":    req.file,
		"channel": req.channel,
		"elapsed": time.Since(req.started),
		"status":  statusText(c.Err),
	}).Debug("Playback complete")

	m.invoke(req, c.Err)
}

// invoke calls the request callback, turning a panic into ErrCallbackFault
func (m *Mixer) invoke(req *request, status error) {
	if req.onDone == nil {
		if status != nil {
			m.reportError(status)
		}
		return
	}

	defer func() {
		if r := recover(); r != nil {
			m.reportError(fmt.Errorf("%w: %s on channel %d: %v", ErrCallbackFault, req.file, req.channel, r))
		}
	}()

	req.onDone(req.file, req.channel, status)
}

func (m *Mixer) reportError(err error) {
	log.WithError(err).Error("Mixer error")
	if m.config.OnError != nil {
		m.config.OnError(err)
	}
}

func statusText(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}

// DispatcherState reports whether a completion dispatcher currently exists
func (m *Mixer) DispatcherState() dispatch.State {
	return m.dispatcher.State()
}

// Playing describes a busy channel
type Playing struct {
	ID      string
	File    string
	Channel int
	Since   time.Time
}

// Status is a snapshot of mixer occupancy
type Status struct {
	Size       int
	Free       int
	Busy       int
	Policy     pool.Policy
	Dispatcher dispatch.State
	Playing    []Playing
	Dropped    int64
}

// Status returns current occupancy
func (m *Mixer) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	free, busy := m.pool.Counts()
	st := Status{
		Size:       m.pool.Size(),
		Free:       free,
		Busy:       busy,
		Policy:     m.pool.Policy(),
		Dispatcher: m.dispatcher.State(),
		Dropped:    m.dispatcher.Stats().Dropped,
	}
	for _, req := range m.table.Values() {
		st.Playing = append(st.Playing, Playing{
			ID:      req.id,
			File:    req.file,
			Channel: req.channel,
			Since:   req.started,
		})
	}
	return st
}

// Close halts playback and releases everything. Requests still playing
// are abandoned without a callback.
func (m *Mixer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.worker.Stop()

	err := m.device.Close()

	m.mu.Lock()
	m.dispatcher.Stop()
	abandoned := m.table.Drain()
	for _, req := range abandoned {
		if chunk := req.chunk.Load(); chunk != nil {
			chunk.Free()
		}
		m.pool.Release(req.channel)
	}
	m.mu.Unlock()

	m.loop.Close()

	log.WithField("abandoned", len(abandoned)).Info("Mixer closed")

	if err != nil {
		return fmt.Errorf("close device: %w", err)
	}
	return nil
}
