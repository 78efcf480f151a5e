// ABOUTME: Tests for the mixer facade
// ABOUTME: Covers channel accounting, dispatcher lifecycle and callback delivery
package chanmix

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/chanmix/internal/dispatch"
	"github.com/Resonate-Protocol/chanmix/pkg/audio"
)

func newTestMixer(t *testing.T, config Config) (*Mixer, *fakeDevice) {
	t.Helper()

	dev := newFakeDevice()
	config.Device = dev
	if config.Loader == nil {
		config.Loader = &memLoader{}
	}

	m, err := New(config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	t.Cleanup(func() {
		cancel()
		m.Close()
	})
	return m, dev
}

func TestNewWithFailingDevice(t *testing.T) {
	dev := newFakeDevice()
	dev.openErr = errors.New("no audio hardware")

	m, err := New(Config{Device: dev})
	if !errors.Is(err, ErrInit) {
		t.Fatalf("expected ErrInit, got %v", err)
	}
	if !errors.Is(err, dev.openErr) {
		t.Errorf("expected device error to be wrapped, got %v", err)
	}
	if m != nil {
		t.Error("expected no mixer on init failure")
	}
}

func TestNewWithNoChannels(t *testing.T) {
	dev := newFakeDevice()
	dev.noChannels = true

	m, err := New(Config{Device: dev, Loader: &memLoader{}})
	if !errors.Is(err, ErrInit) {
		t.Fatalf("expected ErrInit, got %v", err)
	}
	if m != nil {
		t.Error("expected no mixer when no channels are allocated")
	}
	if !dev.closed {
		t.Error("expected device closed after failed allocation")
	}
}

func TestSpecReflectsObtainedDevice(t *testing.T) {
	dev := newFakeDevice()
	dev.obtained = audio.Spec{Frequency: 44100, Format: audio.FormatS16LE, Channels: 6, ChunkSize: 1024}

	m, err := New(Config{Device: dev, Loader: &memLoader{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer m.Close()

	spec := m.Spec()
	if spec.AudioRate != 44100 {
		t.Errorf("expected rate 44100, got %d", spec.AudioRate)
	}
	if spec.AudioFormat != 16 {
		t.Errorf("expected 16-bit format, got %d", spec.AudioFormat)
	}
	if spec.AudioChannels != audio.Surround {
		t.Errorf("expected surround layout, got %s", spec.AudioChannels)
	}
	if spec.NumberOfAudioChannels != DefaultMixChannels {
		t.Errorf("expected %d mixer channels, got %d", DefaultMixChannels, spec.NumberOfAudioChannels)
	}

	// The returned spec is a copy
	spec.NumberOfAudioChannels = 2
	if m.Spec().NumberOfAudioChannels != DefaultMixChannels || m.Status().Size != DefaultMixChannels {
		t.Error("changing the returned spec resized the pool")
	}
}

func TestDefaultDeviceSpec(t *testing.T) {
	m, _ := newTestMixer(t, Config{})

	spec := m.Spec()
	if spec.AudioRate != audio.DefaultFrequency || spec.AudioChannels != audio.Stereo {
		t.Errorf("unexpected default spec %+v", spec)
	}
}

func TestPlayRejectsEmptyFile(t *testing.T) {
	m, _ := newTestMixer(t, Config{MixChannels: 4})

	_, err := m.Play("", nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	st := m.Status()
	if st.Free != 4 || st.Dispatcher != dispatch.Absent {
		t.Errorf("rejected play changed state: %+v", st)
	}
}

func TestPlayDeliversExactlyOnce(t *testing.T) {
	m, dev := newTestMixer(t, Config{MixChannels: 4})
	onDone, done := recorder()

	got, err := m.Play("a.wav", onDone)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if got != "a.wav" {
		t.Errorf("expected acknowledgment %q, got %q", "a.wav", got)
	}
	if m.Status().Busy != 1 {
		t.Errorf("expected one busy channel, got %d", m.Status().Busy)
	}

	ch := dev.waitPlayed(t)
	chunk := dev.chunk(ch)
	dev.finish(ch)

	c := waitDone(t, done)
	if c.file != "a.wav" || c.channel != ch || c.err != nil {
		t.Errorf("unexpected completion %+v (channel %d)", c, ch)
	}
	expectNoMore(t, done)

	// A duplicate finished signal for the same channel is ignored
	dev.finish(ch)
	expectNoMore(t, done)

	st := m.Status()
	if st.Free != 4 || st.Busy != 0 {
		t.Errorf("expected pool fully free, got %+v", st)
	}
	if !chunk.Freed() {
		t.Error("expected chunk to be freed after the callback")
	}
}

func TestDispatcherLifecycle(t *testing.T) {
	m, dev := newTestMixer(t, Config{MixChannels: 4})

	if m.DispatcherState() != dispatch.Absent {
		t.Fatal("expected no dispatcher before the first play")
	}

	var mu sync.Mutex
	var states []dispatch.State
	done := make(chan struct{}, 2)
	onDone := func(string, int, error) {
		mu.Lock()
		states = append(states, m.DispatcherState())
		mu.Unlock()
		done <- struct{}{}
	}

	m.Play("a.wav", onDone)
	if m.DispatcherState() != dispatch.Active {
		t.Fatal("expected dispatcher after the first accepted play")
	}
	m.Play("b.wav", onDone)

	first := dev.waitPlayed(t)
	second := dev.waitPlayed(t)

	dev.finish(first)
	<-done
	if m.DispatcherState() != dispatch.Active {
		t.Error("dispatcher stopped while a channel was still busy")
	}

	dev.finish(second)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if states[0] != dispatch.Active || states[1] != dispatch.Absent {
		t.Errorf("unexpected dispatcher states seen by callbacks: %v", states)
	}
	if m.DispatcherState() != dispatch.Absent {
		t.Error("expected dispatcher torn down after the last completion")
	}
}

func playConcurrently(m *Mixer, files []string, onDone Callback) []error {
	errs := make([]error, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f string) {
			defer wg.Done()
			_, errs[i] = m.Play(f, onDone)
		}(i, f)
	}
	wg.Wait()
	return errs
}

func TestConcurrentPlaysClaimAny(t *testing.T) {
	m, dev := newTestMixer(t, Config{MixChannels: 3})
	onDone, done := recorder()

	errs := playConcurrently(m, []string{"a.wav", "b.wav", "c.wav"}, onDone)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("play %d failed: %v", i, err)
		}
	}

	if _, err := m.Play("d.wav", onDone); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("expected ErrResourceExhausted on a full pool, got %v", err)
	}

	seen := make(map[int]bool)
	for i := 0; i < 3; i++ {
		ch := dev.waitPlayed(t)
		if seen[ch] {
			t.Fatalf("channel %d handed out twice", ch)
		}
		seen[ch] = true
		dev.finish(ch)
	}
	for i := 0; i < 3; i++ {
		waitDone(t, done)
	}

	st := m.Status()
	if st.Free != 3 || st.Dispatcher != dispatch.Absent {
		t.Errorf("expected idle mixer, got %+v", st)
	}
}

func TestConcurrentPlaysReserveLast(t *testing.T) {
	m, dev := newTestMixer(t, Config{MixChannels: 3, ReserveLastChannel: true})
	onDone, done := recorder()

	errs := playConcurrently(m, []string{"a.wav", "b.wav", "c.wav"}, onDone)

	accepted, exhausted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ErrResourceExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if accepted != 2 || exhausted != 1 {
		t.Fatalf("expected 2 accepted and 1 exhausted, got %d and %d", accepted, exhausted)
	}

	for i := 0; i < 2; i++ {
		dev.finish(dev.waitPlayed(t))
	}
	for i := 0; i < 2; i++ {
		waitDone(t, done)
	}

	if st := m.Status(); st.Free != 3 {
		t.Errorf("expected pool fully free, got %+v", st)
	}
}

func TestLoadFailureIsReported(t *testing.T) {
	loader := &memLoader{missing: map[string]bool{"gone.wav": true}}
	m, _ := newTestMixer(t, Config{MixChannels: 2, Loader: loader})
	onDone, done := recorder()

	if _, err := m.Play("gone.wav", onDone); err != nil {
		t.Fatalf("play should be accepted before loading, got %v", err)
	}

	c := waitDone(t, done)
	if !errors.Is(c.err, ErrLoadFailed) || !errors.Is(c.err, errMissing) {
		t.Errorf("expected ErrLoadFailed wrapping the loader error, got %v", c.err)
	}
	if c.file != "gone.wav" {
		t.Errorf("expected file name in completion, got %q", c.file)
	}

	st := m.Status()
	if st.Free != 2 || st.Dispatcher != dispatch.Absent {
		t.Errorf("expected channel released after load failure, got %+v", st)
	}
}

func TestPlayFailureFreesChunk(t *testing.T) {
	m, dev := newTestMixer(t, Config{MixChannels: 2})
	dev.mu.Lock()
	dev.playErr = errors.New("device busy")
	dev.mu.Unlock()

	onDone, done := recorder()
	m.Play("a.wav", onDone)

	c := waitDone(t, done)
	if !errors.Is(c.err, ErrPlayFailed) {
		t.Errorf("expected ErrPlayFailed, got %v", c.err)
	}
	if m.Status().Free != 2 {
		t.Error("expected channel released after play failure")
	}
}

func TestPanickingCallbackIsReported(t *testing.T) {
	var mu sync.Mutex
	var reported []error
	onError := func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}

	m, dev := newTestMixer(t, Config{MixChannels: 2, OnError: onError})

	m.Play("boom.wav", func(string, int, error) { panic("callback exploded") })
	ch := dev.waitPlayed(t)
	chunk := dev.chunk(ch)
	dev.finish(ch)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(reported)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	if len(reported) != 1 || !errors.Is(reported[0], ErrCallbackFault) {
		t.Fatalf("expected one ErrCallbackFault, got %v", reported)
	}
	mu.Unlock()

	if !chunk.Freed() {
		t.Error("expected chunk freed despite the panic")
	}
	if m.Status().Free != 2 {
		t.Error("expected channel released despite the panic")
	}

	// The mixer keeps working
	onDone, done := recorder()
	if _, err := m.Play("after.wav", onDone); err != nil {
		t.Fatalf("play after panic failed: %v", err)
	}
	dev.finish(dev.waitPlayed(t))
	if c := waitDone(t, done); c.file != "after.wav" {
		t.Errorf("unexpected completion %+v", c)
	}
}

func TestNilCallback(t *testing.T) {
	m, dev := newTestMixer(t, Config{MixChannels: 1})

	if _, err := m.Play("a.wav", nil); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	dev.finish(dev.waitPlayed(t))

	deadline := time.Now().Add(2 * time.Second)
	for m.Status().Free != 1 {
		if time.Now().After(deadline) {
			t.Fatal("channel never released")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCallbacksWaitForRun(t *testing.T) {
	dev := newFakeDevice()
	m, err := New(Config{Device: dev, Loader: &memLoader{}, MixChannels: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer m.Close()

	onDone, done := recorder()
	m.Play("a.wav", onDone)
	dev.finish(dev.waitPlayed(t))

	// Nothing runs until the loop is driven
	expectNoMore(t, done)
	if m.Status().Busy != 1 {
		t.Error("channel released before the loop ran")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	if c := waitDone(t, done); c.file != "a.wav" {
		t.Errorf("unexpected completion %+v", c)
	}
}

func TestStrayFinishedSignal(t *testing.T) {
	m, dev := newTestMixer(t, Config{MixChannels: 2})
	onDone, done := recorder()

	m.Play("a.wav", onDone)
	ch := dev.waitPlayed(t)

	// A channel nobody claimed finishes
	dev.finish(1 - ch)
	expectNoMore(t, done)
	if m.Status().Busy != 1 {
		t.Error("stray signal changed pool state")
	}

	dev.finish(ch)
	waitDone(t, done)
}

func TestCloseRejectsPlays(t *testing.T) {
	m, dev := newTestMixer(t, Config{MixChannels: 2})
	onDone, done := recorder()

	m.Play("a.wav", onDone)
	ch := dev.waitPlayed(t)
	chunk := dev.chunk(ch)

	if err := m.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !dev.closed {
		t.Error("expected device closed")
	}
	if !chunk.Freed() {
		t.Error("expected pending chunk freed on close")
	}
	if _, err := m.Play("b.wav", onDone); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	dev.finish(ch)
	expectNoMore(t, done)

	// Close is idempotent
	if err := m.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}

func TestStatusListsPlaying(t *testing.T) {
	m, dev := newTestMixer(t, Config{MixChannels: 3})

	m.Play("a.wav", nil)
	dev.waitPlayed(t)

	st := m.Status()
	if len(st.Playing) != 1 || st.Playing[0].File != "a.wav" || st.Playing[0].ID == "" {
		t.Errorf("unexpected playing list %+v", st.Playing)
	}
}

func TestCloseCancelsInFlightLoad(t *testing.T) {
	loader := &stallLoader{started: make(chan string, 1)}
	m, _ := newTestMixer(t, Config{MixChannels: 2, Loader: loader})
	onDone, done := recorder()

	if _, err := m.Play("http://example.invalid/slow.wav", onDone); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	select {
	case <-loader.started:
	case <-time.After(2 * time.Second):
		t.Fatal("load never started")
	}

	closed := make(chan error, 1)
	go func() { closed <- m.Close() }()

	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("close failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("close waited on a stalled load")
	}
	expectNoMore(t, done)
}
