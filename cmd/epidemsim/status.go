package main

import (
	"fmt"

	"epidemsim/internal/runstore"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Query a run's lifecycle status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := runstore.Open(storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Query(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:         %s\n", run.ID)
	fmt.Fprintf(out, "name:       %s\n", run.Name)
	fmt.Fprintf(out, "status:     %s\n", run.Status)
	fmt.Fprintf(out, "runs:       %d\n", run.Runs)
	fmt.Fprintf(out, "output_dir: %s\n", run.OutputDir)
	fmt.Fprintf(out, "log_path:   %s\n", run.LogPath)
	fmt.Fprintf(out, "created_at: %s\n", run.CreatedAt)
	fmt.Fprintf(out, "updated_at: %s\n", run.UpdatedAt)
	return nil
}
