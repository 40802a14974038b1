package main

import (
	"fmt"
	"os"
	"path/filepath"

	"epidemsim/internal/runstore"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <run-id>",
	Short: "List the artifact paths a completed run produced",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	store, err := runstore.Open(storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	dir, err := store.Fetch(args[0])
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, e := range entries {
		if !e.IsDir() {
			fmt.Fprintln(out, filepath.Join(dir, e.Name()))
		}
	}
	return nil
}
