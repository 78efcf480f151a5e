// ABOUTME: Decoder interface definition and extension registry
// ABOUTME: Maps file extensions to the decoder that understands them
package decode

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Resonate-Protocol/chanmix/pkg/audio"
)

var (
	// ErrUnsupportedFormat is returned for file types no decoder handles
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrNoSamples is returned when a stream decodes to nothing
	ErrNoSamples = errors.New("no audio samples decoded")
)

// Decoder decodes a complete encoded stream to PCM int32 samples
type Decoder interface {
	// Decode reads r to the end and returns the stream format and
	// interleaved samples in 24-bit range
	Decode(r io.Reader) (audio.Format, []int32, error)
}

// ForPath picks a decoder from the extension of name. Raw PCM has no
// header, so it is read using rawFormat.
func ForPath(name string, rawFormat audio.Format) (Decoder, error) {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".wav", ".wave":
		return NewWAV(), nil
	case ".mp3":
		return NewMP3(), nil
	case ".flac":
		return NewFLAC(), nil
	case ".opus", ".ogg", ".oga":
		return NewOpus(), nil
	case ".pcm", ".raw":
		rawFormat.Codec = "pcm"
		return NewPCM(rawFormat)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
