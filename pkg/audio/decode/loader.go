// ABOUTME: Whole-file loader producing device-ready chunks
// ABOUTME: Reads files from an afero filesystem or HTTP and converts them to the device spec
package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Resonate-Protocol/chanmix/pkg/audio"
	"github.com/Resonate-Protocol/chanmix/pkg/audio/resample"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ErrNotFound is returned when the source file does not exist
var ErrNotFound = errors.New("audio file not found")

const httpTimeout = 30 * time.Second

// Loader decodes whole files into chunks matching a device spec
type Loader struct {
	fs     afero.Fs
	spec   audio.Spec
	client *http.Client
}

// NewLoader creates a loader reading from fs. A nil fs means the OS filesystem.
func NewLoader(fs afero.Fs, spec audio.Spec) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{
		fs:     fs,
		spec:   spec.WithDefaults(),
		client: &http.Client{Timeout: httpTimeout},
	}
}

// WithHTTPClient replaces the client used for http(s) sources
func (l *Loader) WithHTTPClient(client *http.Client) *Loader {
	l.client = client
	return l
}

// Load decodes source and converts it to the loader's spec. ctx bounds
// the fetch of http(s) sources.
func (l *Loader) Load(ctx context.Context, source string) (*audio.Chunk, error) {
	start := time.Now()

	rc, name, err := l.open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	rawFormat := audio.Format{
		SampleRate: l.spec.Frequency,
		Channels:   l.spec.Channels,
		BitDepth:   16,
	}
	decoder, err := ForPath(name, rawFormat)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}

	format, samples, err := decoder.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("load %s: %w", source, ErrNoSamples)
	}

	samples = resample.Remix(samples, format.Channels, l.spec.Channels)
	samples = resample.Convert(samples, format.SampleRate, l.spec.Frequency, l.spec.Channels)

	chunk := audio.NewChunk(source, audio.Format{
		Codec:      format.Codec,
		SampleRate: l.spec.Frequency,
		Channels:   l.spec.Channels,
		BitDepth:   l.spec.BitDepth(),
	}, samples)

	log.WithFields(log.Fields{
		"source":   source,
		"codec":    format.Codec,
		"rate":     format.SampleRate,
		"channels": format.Channels,
		"duration": chunk.Duration(),
		"elapsed":  time.Since(start),
	}).Debug("Loaded chunk")

	return chunk, nil
}

// open returns a reader for source and the name used to pick a decoder
func (l *Loader) open(ctx context.Context, source string) (io.ReadCloser, string, error) {
	if isRemote(source) {
		u, err := url.Parse(source)
		if err != nil {
			return nil, "", fmt.Errorf("load %s: %w", source, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, "", fmt.Errorf("load %s: %w", source, err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("load %s: %w", source, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			if resp.StatusCode == http.StatusNotFound {
				return nil, "", fmt.Errorf("load %s: %w", source, ErrNotFound)
			}
			return nil, "", fmt.Errorf("load %s: unexpected status %s", source, resp.Status)
		}
		return resp.Body, u.Path, nil
	}

	f, err := l.fs.Open(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("load %s: %w", source, ErrNotFound)
		}
		return nil, "", fmt.Errorf("load %s: %w", source, err)
	}
	return f, source, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
