// ABOUTME: Test doubles for the mixer
// ABOUTME: A device whose channels finish on demand and an in-memory loader
package chanmix

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/chanmix/pkg/audio"
)

// fakeDevice plays nothing; tests decide when each channel finishes
type fakeDevice struct {
	mu       sync.Mutex
	openErr  error
	playErr  error
	obtained audio.Spec
	n        int
	finished func(int)
	chunks   map[int]*audio.Chunk
	closed   bool

	// noChannels makes AllocateChannels grant nothing
	noChannels bool

	played chan int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		chunks: make(map[int]*audio.Chunk),
		played: make(chan int, 64),
	}
}

func (f *fakeDevice) Open(spec audio.Spec) (audio.Spec, error) {
	if f.openErr != nil {
		return audio.Spec{}, f.openErr
	}
	if f.obtained.Frequency != 0 {
		return f.obtained, nil
	}
	return spec, nil
}

func (f *fakeDevice) AllocateChannels(n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noChannels {
		return 0
	}
	f.n = n
	return n
}

func (f *fakeDevice) PlayChannel(channel int, chunk *audio.Chunk, loops int) error {
	f.mu.Lock()
	if f.playErr != nil {
		f.mu.Unlock()
		return f.playErr
	}
	f.chunks[channel] = chunk
	f.mu.Unlock()

	f.played <- channel
	return nil
}

func (f *fakeDevice) OnChannelFinished(fn func(int)) {
	f.mu.Lock()
	f.finished = fn
	f.mu.Unlock()
}

func (f *fakeDevice) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// finish raises the finished signal from a separate goroutine, like a
// device audio thread would
func (f *fakeDevice) finish(channel int) {
	f.mu.Lock()
	fn := f.finished
	f.mu.Unlock()
	go fn(channel)
}

func (f *fakeDevice) chunk(channel int) *audio.Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks[channel]
}

// waitPlayed returns the next channel the device was asked to play
func (f *fakeDevice) waitPlayed(t *testing.T) int {
	t.Helper()
	select {
	case ch := <-f.played:
		return ch
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for PlayChannel")
		return -1
	}
}

var errMissing = errors.New("no such file")

// memLoader returns a tiny chunk for any file except the ones marked missing
type memLoader struct {
	mu      sync.Mutex
	missing map[string]bool
}

func (l *memLoader) Load(ctx context.Context, file string) (*audio.Chunk, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.missing[file] {
		return nil, errMissing
	}
	return audio.NewChunk(file, audio.Format{Codec: "pcm", SampleRate: 22050, Channels: 2, BitDepth: 16}, make([]int32, 64)), nil
}

// completion captures one callback invocation
type completion struct {
	file    string
	channel int
	err     error
}

func recorder() (Callback, chan completion) {
	ch := make(chan completion, 64)
	return func(file string, channel int, err error) {
		ch <- completion{file: file, channel: channel, err: err}
	}, ch
}

func waitDone(t *testing.T, ch <-chan completion) completion {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion callback")
		return completion{}
	}
}

func expectNoMore(t *testing.T, ch <-chan completion) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected extra completion %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

// stallLoader blocks every load until its context is cancelled
type stallLoader struct {
	started chan string
}

func (l *stallLoader) Load(ctx context.Context, file string) (*audio.Chunk, error) {
	l.started <- file
	<-ctx.Done()
	return nil, ctx.Err()
}
