// ABOUTME: serve subcommand
// ABOUTME: Runs the websocket play server on top of a mixer until interrupted
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/chanmix/internal/config"
	"github.com/Resonate-Protocol/chanmix/internal/server"
	"github.com/Resonate-Protocol/chanmix/internal/version"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()

	flags.IntP("port", "p", 0, "WebSocket server port")
	lo.Must0(viper.BindPFlag(config.ServerPort, flags.Lookup("port")))

	flags.String("name", "", "Server friendly name (default: hostname-chanmix)")
	lo.Must0(viper.BindPFlag(config.ServerName, flags.Lookup("name")))

	flags.Bool("mdns", true, "Advertise the server over mDNS")
	lo.Must0(viper.BindPFlag(config.ServerMDNS, flags.Lookup("mdns")))

	flags.Bool("tui", false, "Show the channel occupancy TUI")
	lo.Must0(viper.BindPFlag(config.ServerTUI, flags.Lookup("tui")))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept play requests over websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		mixer, err := newMixer(settings)
		if err != nil {
			return err
		}
		defer mixer.Close()

		name := settings.Name
		if name == "" {
			hostname, err := os.Hostname()
			if err != nil {
				hostname = "unknown"
			}
			name = fmt.Sprintf("%s-%s", hostname, version.Product)
		}

		srv := server.New(server.Config{
			Port:       settings.Port,
			Name:       name,
			EnableMDNS: settings.MDNS,
			UseTUI:     settings.TUI,
		}, mixer)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			log.Info("Received signal, shutting down gracefully...")
			srv.Stop()
		}()

		go func() {
			if err := mixer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("Completion loop stopped")
			}
		}()

		log.WithFields(log.Fields{"name": name, "port": settings.Port}).Info("Starting play server")
		log.Info("Press Ctrl-C to stop")

		if err := srv.Start(); err != nil {
			return err
		}
		stop()
		return nil
	},
}
