// ABOUTME: version subcommand
// ABOUTME: Prints product, version and platform
package main

import (
	"runtime"

	"github.com/Resonate-Protocol/chanmix/internal/version"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("short", "s", false, "Print only the version number")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if lo.Must(cmd.Flags().GetBool("short")) {
			cmd.Println(version.Version)
			return
		}
		cmd.Printf("%s %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	},
}
