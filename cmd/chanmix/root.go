// ABOUTME: Root cobra command and shared flag wiring
// ABOUTME: Loads settings, sets up logging and builds the mixer for subcommands
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/chanmix/internal/config"
	"github.com/Resonate-Protocol/chanmix/internal/logging"
	"github.com/Resonate-Protocol/chanmix/internal/version"
	"github.com/Resonate-Protocol/chanmix/pkg/audio/output"
	"github.com/Resonate-Protocol/chanmix/pkg/chanmix"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	settings  config.Config
	logCloser io.Closer
)

func init() {
	flags := rootCmd.PersistentFlags()

	flags.Int("frequency", 0, "Output sample rate in Hz")
	lo.Must0(viper.BindPFlag(config.Frequency, flags.Lookup("frequency")))

	flags.String("format", "", "Output sample format ("+fmt.Sprint(config.FormatNames())+")")
	lo.Must0(viper.BindPFlag(config.Format, flags.Lookup("format")))

	flags.Int("channels", 0, "Output speaker channels")
	lo.Must0(viper.BindPFlag(config.Channels, flags.Lookup("channels")))

	flags.Int("chunk-size", 0, "Device buffer size in sample frames")
	lo.Must0(viper.BindPFlag(config.ChunkSize, flags.Lookup("chunk-size")))

	flags.IntP("mix-channels", "m", 0, "Number of mixer channels to allocate")
	lo.Must0(viper.BindPFlag(config.MixChannels, flags.Lookup("mix-channels")))

	flags.Int("workers", 0, "Number of concurrent loaders")
	lo.Must0(viper.BindPFlag(config.Workers, flags.Lookup("workers")))

	flags.Bool("reserve-last-channel", false, "Only claim a channel while more than one is free")
	lo.Must0(viper.BindPFlag(config.ReserveLastChannel, flags.Lookup("reserve-last-channel")))

	flags.Bool("headless", false, "Use a timer device instead of the sound card")
	lo.Must0(viper.BindPFlag(config.Headless, flags.Lookup("headless")))

	flags.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	lo.Must0(viper.BindPFlag(config.LogLevel, flags.Lookup("log-level")))

	flags.Bool("log-json", false, "Emit logs as JSON")
	lo.Must0(viper.BindPFlag(config.LogJSON, flags.Lookup("log-json")))

	flags.String("log-file", "", "Also append logs to this file")
	lo.Must0(viper.BindPFlag(config.LogFile, flags.Lookup("log-file")))
}

var rootCmd = &cobra.Command{
	Use:           version.Product,
	Short:         "Play audio files on a pool of mixer channels",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		fs := afero.NewOsFs()

		if err := config.Setup(fs, ".", "$HOME/.config/"+version.Product); err != nil {
			return err
		}

		var err error
		if settings, err = config.Load(); err != nil {
			return err
		}

		logCloser, err = logging.Setup(fs, logging.Options{
			Level: settings.LogLevel,
			JSON:  settings.LogJSON,
			File:  settings.LogFile,
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

// Execute runs the command tree and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newMixer opens a mixer from the resolved settings
func newMixer(cfg config.Config) (*chanmix.Mixer, error) {
	mixerConfig := chanmix.Config{
		Frequency:          cfg.Frequency,
		Format:             cfg.Format,
		Channels:           cfg.Channels,
		ChunkSize:          cfg.ChunkSize,
		MixChannels:        cfg.MixChannels,
		Workers:            cfg.Workers,
		ReserveLastChannel: cfg.ReserveLastChannel,
		OnError: func(err error) {
			log.WithError(err).Error("Mixer error")
		},
	}
	if cfg.Headless {
		mixerConfig.Device = output.NewHeadless(true)
	}

	mixer, err := chanmix.New(mixerConfig)
	if err != nil {
		return nil, err
	}

	spec := mixer.Spec()
	log.WithFields(log.Fields{
		"rate":     spec.AudioRate,
		"bits":     spec.AudioFormat,
		"layout":   spec.AudioChannels,
		"channels": spec.NumberOfAudioChannels,
	}).Debug("Opened audio")

	return mixer, nil
}
