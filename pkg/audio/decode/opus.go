// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Decodes Ogg Opus files to int32 samples via libopusfile
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/chanmix/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// Opus always decodes at 48kHz
const opusSampleRate = 48000

// Largest Opus frame is 120ms at 48kHz
const opusMaxFrame = 5760

var opusHeadMagic = []byte("OpusHead")

// OpusDecoder decodes Ogg Opus audio
type OpusDecoder struct{}

// NewOpus creates a new Opus decoder
func NewOpus() Decoder {
	return &OpusDecoder{}
}

// Decode converts Ogg Opus bytes to int32 samples
func (d *OpusDecoder) Decode(r io.Reader) (audio.Format, []int32, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return audio.Format{}, nil, fmt.Errorf("failed to read opus data: %w", err)
	}

	channels, err := opusChannels(data)
	if err != nil {
		return audio.Format{}, nil, err
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return audio.Format{}, nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}
	defer stream.Close()

	var samples []int32
	pcm := make([]int16, opusMaxFrame*channels)
	for {
		n, err := stream.Read(pcm)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return audio.Format{}, nil, fmt.Errorf("opus decode failed: %w", err)
		}

		// n counts samples per channel
		for _, s := range pcm[:n*channels] {
			samples = append(samples, audio.SampleFromInt16(s))
		}
	}

	return audio.Format{
		Codec:      "opus",
		SampleRate: opusSampleRate,
		Channels:   channels,
		BitDepth:   16,
	}, samples, nil
}

// opusChannels reads the output channel count from the OpusHead packet
func opusChannels(data []byte) (int, error) {
	idx := bytes.Index(data, opusHeadMagic)
	if idx < 0 || idx+9 >= len(data) {
		return 0, errors.New("opus: missing OpusHead header")
	}
	channels := int(data[idx+9])
	if channels == 0 {
		return 0, errors.New("opus: header declares zero channels")
	}
	return channels, nil
}
