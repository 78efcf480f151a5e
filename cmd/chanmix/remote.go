// ABOUTME: remote subcommand
// ABOUTME: Sends play requests to a running server and waits for their completions
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/chanmix/internal/client"
	"github.com/Resonate-Protocol/chanmix/internal/discovery"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(remoteCmd)
	remoteCmd.Flags().StringP("addr", "a", "", "Server host:port or ws:// URL (default: first server found over mDNS)")
	remoteCmd.Flags().Bool("status", false, "Print channel occupancy instead of playing")
}

var remoteCmd = &cobra.Command{
	Use:   "remote [FILE...]",
	Short: "Play files on a chanmix server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := lo.Must(cmd.Flags().GetString("addr"))
		showStatus := lo.Must(cmd.Flags().GetBool("status"))

		if !showStatus && len(args) == 0 {
			return errors.New("at least one file is required")
		}

		if addr == "" {
			found, err := findServer(5 * time.Second)
			if err != nil {
				return err
			}
			addr = found
		}

		c := client.NewClient(client.Config{ServerAddr: addr})
		if err := c.Connect(); err != nil {
			return err
		}
		defer c.Close()

		out := cmd.OutOrStdout()
		hello := c.Hello()
		fmt.Fprintf(out, "Connected to %s (%d Hz, %d-bit %s, %d channels)\n", hello.Name,
			hello.Spec.AudioRate, hello.Spec.AudioFormat, hello.Spec.AudioChannels, hello.Spec.NumberOfAudioChannels)

		if showStatus {
			if err := c.RequestStatus(); err != nil {
				return err
			}
			select {
			case st := <-c.Status:
				fmt.Fprintf(out, "%d/%d busy, dispatcher %s, policy %s\n", st.Busy, st.Size, st.Dispatcher, st.Policy)
				for _, p := range st.Playing {
					fmt.Fprintf(out, "  [%02d] %s\n", p.Channel, p.File)
				}
				return nil
			case <-c.Closed():
				return client.ErrNotConnected
			}
		}

		files := map[string]string{}
		for _, file := range args {
			id, err := c.Play(file)
			if err != nil {
				return err
			}
			files[id] = file
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)

		failed := 0
		for len(files) > 0 {
			select {
			case <-c.Acks:
			case e := <-c.Errors:
				if _, ok := files[e.RequestID]; !ok {
					return fmt.Errorf("server error %s: %s", e.Code, e.Message)
				}
				failed++
				fmt.Fprintf(out, "%s %s: %s\n", failStyle.Render("✗"), fileStyle.Render(files[e.RequestID]), e.Message)
				delete(files, e.RequestID)
			case done := <-c.Done:
				if done.Error != "" {
					failed++
					fmt.Fprintf(out, "%s %s on channel %d: %s\n", failStyle.Render("✗"), fileStyle.Render(done.File), done.Channel, done.Error)
				} else {
					fmt.Fprintf(out, "%s %s on channel %d\n", okStyle.Render("✓"), fileStyle.Render(done.File), done.Channel)
				}
				delete(files, done.RequestID)
			case <-c.Closed():
				return fmt.Errorf("connection lost with %d requests pending", len(files))
			case <-sig:
				return fmt.Errorf("interrupted with %d requests pending", len(files))
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

// findServer returns the URL of the first server advertised within timeout
func findServer(timeout time.Duration) (string, error) {
	manager := discovery.NewManager(discovery.Config{})
	if err := manager.Browse(); err != nil {
		return "", err
	}
	defer manager.Stop()

	select {
	case srv := <-manager.Servers():
		return srv.URL(), nil
	case <-time.After(timeout):
		return "", errors.New("no server found; pass --addr")
	}
}
