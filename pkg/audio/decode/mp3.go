// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 audio to int32 samples
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/chanmix/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MP3 audio
type MP3Decoder struct{}

// NewMP3 creates a new MP3 decoder
func NewMP3() Decoder {
	return &MP3Decoder{}
}

// Decode converts MP3 bytes to int32 samples.
// go-mp3 always produces 16-bit stereo.
func (d *MP3Decoder) Decode(r io.Reader) (audio.Format, []int32, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return audio.Format{}, nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return audio.Format{}, nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	// Convert bytes to int16 then to int32
	numSamples := len(pcm) / 2
	samples := make([]int32, numSamples)
	for i := 0; i < numSamples; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = audio.SampleFromInt16(sample16)
	}

	return audio.Format{
		Codec:      "mp3",
		SampleRate: decoder.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	}, samples, nil
}
