// ABOUTME: play subcommand
// ABOUTME: Starts every file at once and prints each completion as it arrives
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	fileStyle = lipgloss.NewStyle().Bold(true)
)

func init() {
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play FILE...",
	Short: "Play files concurrently and wait for all of them to finish",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mixer, err := newMixer(settings)
		if err != nil {
			return err
		}
		defer mixer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		out := cmd.OutOrStdout()
		remaining := 0
		failed := 0

		// Callbacks run on this goroutine inside mixer.Run
		onDone := func(file string, channel int, err error) {
			remaining--
			if err != nil {
				failed++
				fmt.Fprintf(out, "%s %s on channel %d: %v\n", failStyle.Render("✗"), fileStyle.Render(file), channel, err)
			} else {
				fmt.Fprintf(out, "%s %s on channel %d\n", okStyle.Render("✓"), fileStyle.Render(file), channel)
			}
			if remaining == 0 {
				cancel()
			}
		}

		for _, file := range args {
			if _, err := mixer.Play(file, onDone); err != nil {
				failed++
				fmt.Fprintf(out, "%s %s: %v\n", failStyle.Render("✗"), fileStyle.Render(file), err)
				continue
			}
			remaining++
		}

		if remaining > 0 {
			if err := mixer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}
