// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE files to int32 samples using beep
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/chanmix/pkg/audio"
	"github.com/gopxl/beep/v2/wav"
)

const wavBlockFrames = 512

// WAVDecoder decodes WAV audio
type WAVDecoder struct{}

// NewWAV creates a new WAV decoder
func NewWAV() Decoder {
	return &WAVDecoder{}
}

// Decode converts WAV bytes to int32 samples
func (d *WAVDecoder) Decode(r io.Reader) (audio.Format, []int32, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return audio.Format{}, nil, fmt.Errorf("failed to read wav data: %w", err)
	}

	streamer, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return audio.Format{}, nil, fmt.Errorf("failed to create wav decoder: %w", err)
	}
	defer streamer.Close()

	channels := format.NumChannels
	if channels > 2 {
		// beep folds everything into a stereo pair
		channels = 2
	}

	var samples []int32
	buf := make([][2]float64, wavBlockFrames)
	for {
		n, ok := streamer.Stream(buf)
		for _, frame := range buf[:n] {
			samples = append(samples, audio.SampleFromFloat(frame[0]))
			if channels == 2 {
				samples = append(samples, audio.SampleFromFloat(frame[1]))
			}
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return audio.Format{}, nil, fmt.Errorf("wav decode error: %w", err)
	}

	return audio.Format{
		Codec:      "wav",
		SampleRate: int(format.SampleRate),
		Channels:   channels,
		BitDepth:   format.Precision * 8,
	}, samples, nil
}
