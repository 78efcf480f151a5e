// ABOUTME: Mixer configuration and spec types
// ABOUTME: Fills defaults the way the device would negotiate them
package chanmix

import (
	"context"

	"github.com/Resonate-Protocol/chanmix/pkg/audio"
	"github.com/Resonate-Protocol/chanmix/pkg/audio/output"
	"github.com/spf13/afero"
)

// DefaultMixChannels is the number of channels allocated when none is set
const DefaultMixChannels = 32

// Room for stray signals on top of one completion per channel
const dispatchSlack = 8

// Loader turns a file name into a decoded chunk
type Loader interface {
	Load(ctx context.Context, file string) (*audio.Chunk, error)
}

// Config holds mixer configuration
type Config struct {
	Frequency   int
	Format      uint16
	Channels    int
	ChunkSize   int
	MixChannels int
	Workers     int

	// ReserveLastChannel only claims while more than one channel is free,
	// so one channel always stays unused
	ReserveLastChannel bool

	// Device defaults to an oto device
	Device output.Device

	// FS is used by the default loader; defaults to the OS filesystem
	FS afero.Fs

	// Loader overrides the default file loader
	Loader Loader

	// OnError receives failures that have no caller to return to
	OnError func(error)
}

func (c Config) withDefaults() Config {
	if c.MixChannels <= 0 {
		c.MixChannels = DefaultMixChannels
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Device == nil {
		c.Device = output.NewOto()
	}
	if c.FS == nil {
		c.FS = afero.NewOsFs()
	}
	return c
}

func (c Config) deviceSpec() audio.Spec {
	return audio.Spec{
		Frequency: c.Frequency,
		Format:    c.Format,
		Channels:  c.Channels,
		ChunkSize: c.ChunkSize,
	}.WithDefaults()
}

// Spec describes the opened device as seen by callers
type Spec struct {
	AudioRate             int
	AudioFormat           int // sample size in bits
	AudioChannels         audio.Layout
	NumberOfAudioChannels int
}
