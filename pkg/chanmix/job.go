// ABOUTME: Background playback job
// ABOUTME: Loads the requested file and starts it on the claimed channel
package chanmix

import (
	"context"
	"fmt"
)

// playbackJob runs on the worker. Returning does not mean playback ended;
// the device reports that through its finished hook.
type playbackJob struct {
	mixer *Mixer
	req   *request
}

// Run loads and starts the file
func (j playbackJob) Run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	chunk, err := j.mixer.loader.Load(ctx, j.req.file)
	if ctx.Err() != nil {
		// The mixer is closing and abandons this request
		if chunk != nil {
			chunk.Free()
		}
		return
	}
	if err != nil {
		j.mixer.inject(j.req.channel, fmt.Errorf("%w: %w", ErrLoadFailed, err))
		return
	}
	j.req.chunk.Store(chunk)

	if err := j.mixer.device.PlayChannel(j.req.channel, chunk, 0); err != nil {
		j.mixer.inject(j.req.channel, fmt.Errorf("%w: %s: %w", ErrPlayFailed, j.req.file, err))
	}
}
