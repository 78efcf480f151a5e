// ABOUTME: Process-wide logrus setup
// ABOUTME: Sets level and formatter, and tees output to an optional log file
package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Options control log output
type Options struct {
	Level string // unknown levels fall back to info
	JSON  bool
	File  string // appended to alongside stdout when set
}

// Setup configures the standard logrus logger. The returned closer releases
// the log file and must be called on exit.
func Setup(fs afero.Fs, opts Options) (io.Closer, error) {
	return configure(log.StandardLogger(), fs, opts, os.Stdout)
}

func configure(logger *log.Logger, fs afero.Fs, opts Options, stdout io.Writer) (io.Closer, error) {
	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	if opts.JSON {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if opts.File == "" {
		logger.SetOutput(stdout)
		return io.NopCloser(nil), nil
	}

	f, err := fs.OpenFile(opts.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(stdout, f))

	return f, nil
}
