// ABOUTME: Audio type definitions
// ABOUTME: Defines device specs, channel layouts and decoded waveform chunks
package audio

import (
	"sync/atomic"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Sample format identifiers, bit-compatible with the SDL audio format word:
// the low byte carries the bit size, 0x8000 marks signed, 0x0100 marks float.
const (
	FormatU8    uint16 = 0x0008
	FormatS16LE uint16 = 0x8010
	FormatS32LE uint16 = 0x8020
	FormatF32LE uint16 = 0x8120
)

// Defaults used when opening a device without explicit parameters.
const (
	DefaultFrequency = 22050
	DefaultFormat    = FormatS16LE
	DefaultChannels  = 2
	DefaultChunkSize = 4096
)

// Layout names the speaker arrangement derived from the output channel count
type Layout string

const (
	Mono     Layout = "mono"
	Stereo   Layout = "stereo"
	Surround Layout = "surround"
)

// LayoutFor maps an output channel count to its layout name
func LayoutFor(channels int) Layout {
	switch {
	case channels > 2:
		return Surround
	case channels > 1:
		return Stereo
	default:
		return Mono
	}
}

// Spec describes the negotiated parameters of an output device
type Spec struct {
	Frequency int    // samples per second
	Format    uint16 // sample format word
	Channels  int    // output speaker channels (not mixer channels)
	ChunkSize int    // device buffer size in sample frames
}

// BitDepth returns the sample size in bits (the low byte of the format word)
func (s Spec) BitDepth() int {
	return int(s.Format & 0xFF)
}

// Layout returns the speaker layout of the spec
func (s Spec) Layout() Layout {
	return LayoutFor(s.Channels)
}

// WithDefaults fills zero fields with the package defaults
func (s Spec) WithDefaults() Spec {
	if s.Frequency == 0 {
		s.Frequency = DefaultFrequency
	}
	if s.Format == 0 {
		s.Format = DefaultFormat
	}
	if s.Channels == 0 {
		s.Channels = DefaultChannels
	}
	if s.ChunkSize == 0 {
		s.ChunkSize = DefaultChunkSize
	}
	return s
}

// Format describes the layout of decoded samples
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Chunk is a fully decoded waveform ready to be handed to a device.
// Samples are interleaved and kept in the 24-bit int32 range.
type Chunk struct {
	Source  string
	Format  Format
	Samples []int32

	freed atomic.Bool
}

// NewChunk wraps decoded samples
func NewChunk(source string, format Format, samples []int32) *Chunk {
	return &Chunk{
		Source:  source,
		Format:  format,
		Samples: samples,
	}
}

// Frames returns the number of sample frames in the chunk
func (c *Chunk) Frames() int {
	if c == nil || c.Format.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Format.Channels
}

// Duration returns the playback length of the chunk
func (c *Chunk) Duration() time.Duration {
	if c == nil || c.Format.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.Format.SampleRate)
}

// Free drops the sample data. It reports false if the chunk was already freed.
func (c *Chunk) Free() bool {
	if c == nil {
		return false
	}
	if !c.freed.CompareAndSwap(false, true) {
		return false
	}
	c.Samples = nil
	return true
}

// Freed reports whether Free has been called
func (c *Chunk) Freed() bool {
	return c != nil && c.freed.Load()
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleFromFloat converts a [-1, 1] float sample to the 24-bit range with clipping
func SampleFromFloat(sample float64) int32 {
	if sample > 1 {
		sample = 1
	} else if sample < -1 {
		sample = -1
	}
	return int32(sample * Max24Bit)
}

// SampleFromBits scales a signed sample of the given bit depth to the 24-bit range
func SampleFromBits(sample int32, bitDepth int) int32 {
	switch {
	case bitDepth == 24:
		return sample
	case bitDepth < 24:
		return sample << (24 - bitDepth)
	default:
		return sample >> (bitDepth - 24)
	}
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	// Reconstruct 24-bit value and sign-extend to 32-bit
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
