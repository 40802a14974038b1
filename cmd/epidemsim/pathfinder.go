package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"epidemsim/internal/config"
	"epidemsim/internal/errs"
	"epidemsim/internal/scenario"

	"github.com/spf13/cobra"
)

var pathfinderCmd = &cobra.Command{
	Use:   "pathfinder",
	Short: "Pathfinder cache utilities",
}

var pathfinderBuildCmd = &cobra.Command{
	Use:   "build <map-dir> <out.gob.gz>",
	Short: "Precompute a transit-anchor pathfinder cache over a terrain raster set",
	Args:  cobra.ExactArgs(2),
	RunE:  runPathfinderBuild,
}

func init() {
	pathfinderCmd.AddCommand(pathfinderBuildCmd)
	pathfinderBuildCmd.Flags().String("legend", "", "path to a terrain legend JSON ([]config.TerrainEntry); defaults to <map-dir>/legend.json")
}

func runPathfinderBuild(cmd *cobra.Command, args []string) error {
	mapDir, outPath := args[0], args[1]
	legendPath, _ := cmd.Flags().GetString("legend")
	if legendPath == "" {
		legendPath = filepath.Join(mapDir, "legend.json")
	}

	entries, err := loadLegend(legendPath)
	if err != nil {
		return err
	}

	sc, err := scenario.Load(config.ScenarioConfig{
		Sim: config.SimConfig{Mapfile: mapDir, Terrain: entries},
	})
	if err != nil {
		return err
	}
	if err := sc.BuildPathfinder(); err != nil {
		return err
	}
	if err := sc.Optimized.Save(outPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote pathfinder cache to %s\n", outPath)
	return nil
}

func loadLegend(path string) ([]config.TerrainEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrBadConfig, "reading terrain legend %s: %v", path, err)
	}
	var entries []config.TerrainEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.Wrap(errs.ErrBadConfig, "parsing terrain legend %s: %v", path, err)
	}
	return entries, nil
}
