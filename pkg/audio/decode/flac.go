// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC audio frame by frame to int32 samples
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/chanmix/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct{}

// NewFLAC creates a new FLAC decoder
func NewFLAC() Decoder {
	return &FLACDecoder{}
}

// Decode converts a FLAC stream to int32 samples
func (d *FLACDecoder) Decode(r io.Reader) (audio.Format, []int32, error) {
	stream, err := flac.New(r)
	if err != nil {
		return audio.Format{}, nil, fmt.Errorf("failed to create flac decoder: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bitDepth := int(stream.Info.BitsPerSample)

	samples := make([]int32, 0, int(stream.Info.NSamples)*channels)
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return audio.Format{}, nil, fmt.Errorf("flac decode error: %w", err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, audio.SampleFromBits(frame.Subframes[ch].Samples[i], bitDepth))
			}
		}
	}

	return audio.Format{
		Codec:      "flac",
		SampleRate: int(stream.Info.SampleRate),
		Channels:   channels,
		BitDepth:   bitDepth,
	}, samples, nil
}
