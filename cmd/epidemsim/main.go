// Command epidemsim drives the simulator from the command line: launch a
// run (single or batch), poll its status, list its artifacts, or precompute
// a pathfinder cache. Subcommands live in their own files following the
// teacher pack's chaos-runner layout (cmd/chaos-runner/run.go).
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	storePath string
	version   = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "epidemsim",
	Short:   "Localized agent-based epidemic simulator",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "epidemsim.db", "path to the run-lifecycle SQLite store")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(pathfinderCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
