package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"epidemsim/internal/config"
	"epidemsim/internal/launcher"
	"epidemsim/internal/runstore"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <config>",
	Short: "Launch a single run or a parallel batch from a scenario/agent config",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().String("save-dir", "", "output directory for the run's artifact(s) (required)")
	runCmd.Flags().Int("runs", 1, "number of independent replicates; >1 selects parallel-batch mode")
	runCmd.Flags().Bool("overwrite", false, "allow overwriting existing artifact files")
	runCmd.Flags().Int64("seed", 0, "base RNG seed (0 derives one from the current time)")
	runCmd.Flags().String("name", "", "human-readable run name (defaults to the scenario name)")
	_ = runCmd.MarkFlagRequired("save-dir")
}

func runRun(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	saveDir, _ := cmd.Flags().GetString("save-dir")
	runs, _ := cmd.Flags().GetInt("runs")
	overwrite, _ := cmd.Flags().GetBool("overwrite")
	seed, _ := cmd.Flags().GetInt64("seed")
	name, _ := cmd.Flags().GetString("name")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if name == "" {
		name = cfg.Scenario.Sim.Name
	}

	store, err := runstore.Open(storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runID := ksuid.New().String()
	fmt.Fprintf(cmd.OutOrStdout(), "run id: %s\n", runID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := launcher.New(store)
	opts := launcher.Options{SaveDir: saveDir, Runs: runs, Overwrite: overwrite, Seed: seed}
	if err := l.Launch(ctx, runID, name, configPath, *cfg, opts); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s complete\n", runID)
	return nil
}
