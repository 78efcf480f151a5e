// ABOUTME: PCM sample encoder
// ABOUTME: Encodes int32 samples to u8, s16, s32 or f32 little-endian bytes
package encode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Resonate-Protocol/chanmix/pkg/audio"
)

// PCMEncoder encodes samples for one device sample format
type PCMEncoder struct {
	format uint16
	size   int
}

// New creates an encoder for a device format word
func New(format uint16) (Encoder, error) {
	switch format {
	case audio.FormatU8:
		return &PCMEncoder{format: format, size: 1}, nil
	case audio.FormatS16LE:
		return &PCMEncoder{format: format, size: 2}, nil
	case audio.FormatS32LE, audio.FormatF32LE:
		return &PCMEncoder{format: format, size: 4}, nil
	default:
		return nil, fmt.Errorf("unsupported sample format: 0x%04x", format)
	}
}

// SampleSize returns bytes per sample
func (e *PCMEncoder) SampleSize() int {
	return e.size
}

// Encode converts int32 samples to device bytes
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	output := make([]byte, len(samples)*e.size)

	switch e.format {
	case audio.FormatU8:
		for i, sample := range samples {
			output[i] = byte(int32(int8(sample>>16)) + 128)
		}
	case audio.FormatS16LE:
		for i, sample := range samples {
			binary.LittleEndian.PutUint16(output[i*2:], uint16(audio.SampleToInt16(sample)))
		}
	case audio.FormatS32LE:
		for i, sample := range samples {
			binary.LittleEndian.PutUint32(output[i*4:], uint32(sample<<8))
		}
	case audio.FormatF32LE:
		for i, sample := range samples {
			f := float32(sample) / float32(audio.Max24Bit)
			binary.LittleEndian.PutUint32(output[i*4:], math.Float32bits(f))
		}
	}

	return output, nil
}
