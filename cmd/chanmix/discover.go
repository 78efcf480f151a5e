// ABOUTME: discover subcommand
// ABOUTME: Lists play servers advertised on the local network
package main

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/chanmix/internal/discovery"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().DurationP("timeout", "t", 5*time.Second, "How long to listen for advertisements")
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find play servers over mDNS",
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout := lo.Must(cmd.Flags().GetDuration("timeout"))

		manager := discovery.NewManager(discovery.Config{})
		if err := manager.Browse(); err != nil {
			return err
		}
		defer manager.Stop()

		seen := map[string]bool{}
		deadline := time.After(timeout)

		for {
			select {
			case srv := <-manager.Servers():
				url := srv.URL()
				if seen[url] {
					continue
				}
				seen[url] = true
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", srv.Name, url)
			case <-deadline:
				if len(seen) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No servers found")
				}
				return nil
			}
		}
	},
}
