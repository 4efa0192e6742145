// Package commands implements the netlayersctl subcommands: dissect, craft,
// reassemble, and serve, structured like the teacher's cmd/gobfdctl/commands
// (root.go + one file per subcommand).
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// outputFormat controls the output format for dissect (text or json); craft
// always prints hex.
var outputFormat string

// rootCmd is the top-level cobra command for netlayersctl.
var rootCmd = &cobra.Command{
	Use:   "netlayersctl",
	Short: "CLI for the netlayers packet-crafting/dissecting library",
	Long:  "netlayersctl dissects, crafts, and reassembles Ethernet-family packets using the netlayers library.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text",
		"output format: text, json")

	rootCmd.AddCommand(dissectCmd())
	rootCmd.AddCommand(craftCmd())
	rootCmd.AddCommand(reassembleCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
