package launcher

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"epidemsim/internal/config"
	"epidemsim/internal/errs"
	"epidemsim/internal/model"
	"epidemsim/internal/runstore"

	"github.com/stretchr/testify/require"
)

func writeQuadrantFloor(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			switch {
			case x < 4 && y < 4:
				img.Set(x, y, color.RGBA{255, 0, 0, 255})
			case x >= 4 && y < 4:
				img.Set(x, y, color.RGBA{0, 255, 0, 255})
			case x < 4 && y >= 4:
				img.Set(x, y, color.RGBA{0, 0, 255, 255})
			default:
				img.Set(x, y, color.RGBA{255, 255, 0, 255})
			}
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func testConfig(t *testing.T, randomAgents, randomInfected int) config.Config {
	dir := t.TempDir()
	writeQuadrantFloor(t, filepath.Join(dir, "0.png"))

	return config.Config{
		Scenario: config.ScenarioConfig{
			Sim: config.SimConfig{
				Name:           "quad",
				Mapfile:        dir,
				XYScale:        1,
				TStep:          3600,
				SaveResolution: 1,
				MaxIter:        2,
				Terrain: []config.TerrainEntry{
					{Name: "home", Hex: "#ff0000", Walkable: true},
					{Name: "work", Hex: "#00ff00", Walkable: true},
					{Name: "open", Hex: "#0000ff", Walkable: true},
					{Name: "exit", Hex: "#ffff00", Walkable: true},
				},
			},
			Virus: config.VirusConfig{AttackRate: 0.2, InfectionRate: 0, FatalityRate: 0.01},
			Prevention: config.PreventionConfig{
				Mask: map[string]float64{"NONE": 0},
				Vax:  map[string][]float64{"NONE": {0, 0, 0}},
			},
		},
		Agents: config.AgentsConfig{
			Name: "pop",
			Default: config.AgentSpec{
				Info: config.AgentInfo{
					MaskType:  "NONE",
					VaxType:   "NONE",
					StartZone: "home",
					WorkZone:  "work",
					HomeZone:  "home",
					Schedule:  map[string]string{},
				},
				State: config.AgentStateSpec{Status: "SUSCEPTIBLE"},
			},
			RandomAgents:   randomAgents,
			RandomInfected: randomInfected,
			Custom: []map[string]interface{}{
				{"info": map[string]interface{}{"age": float64(30)}},
			},
		},
	}
}

func openTestStore(t *testing.T) *runstore.Store {
	t.Helper()
	s, err := runstore.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLaunchRejectsOutputConflictSingleRun(t *testing.T) {
	l := New(openTestStore(t))
	cfg := testConfig(t, 1, 0)
	saveDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(saveDir, "0.h5"), []byte("existing"), 0o644))

	err := l.Launch(context.Background(), "run-conflict", "demo", "cfg.json", cfg, Options{SaveDir: saveDir, Runs: 1})
	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrOutputConflict)

	run, qerr := l.Store.Query("run-conflict")
	require.NoError(t, qerr)
	require.Equal(t, runstore.Failure, run.Status)
}

func TestLaunchRejectsOutputConflictBatch(t *testing.T) {
	l := New(openTestStore(t))
	cfg := testConfig(t, 1, 0)
	saveDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(saveDir, "1.h5"), []byte("existing"), 0o644))

	err := l.Launch(context.Background(), "run-batch-conflict", "demo", "cfg.json", cfg, Options{SaveDir: saveDir, Runs: 3})
	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrOutputConflict)
}

func TestBatchParamsGobRoundTrip(t *testing.T) {
	cfg := testConfig(t, 2, 1)
	path := filepath.Join(t.TempDir(), "params.gob")

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, encodeBatchParams(f, batchParams{Cfg: cfg, Seed: 42}))
	require.NoError(t, f.Close())

	f, err = os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := decodeBatchParams(f)
	require.NoError(t, err)
	require.Equal(t, cfg.Agents.RandomAgents, got.Cfg.Agents.RandomAgents)
	require.Equal(t, int64(42), got.Seed)
	require.Len(t, got.Cfg.Agents.Custom, 1)
}

func TestModelConstructionIsSeedDeterministic(t *testing.T) {
	cfg := testConfig(t, 4, 0)
	m1, err := model.New(cfg, rand.New(rand.NewSource(100)))
	require.NoError(t, err)
	m2, err := model.New(cfg, rand.New(rand.NewSource(100)))
	require.NoError(t, err)

	for i := range m1.Agents {
		require.Equal(t, m1.Agents[i].Age, m2.Agents[i].Age)
	}
}

func TestInfoRowsAndFloorShapeMatchModel(t *testing.T) {
	cfg := testConfig(t, 3, 1)
	m, err := model.New(cfg, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	// 3 random agents plus the one "custom" override entry testConfig sets up.
	wantAgents := 4

	rows := infoRows(m)
	require.Len(t, rows, wantAgents)

	shape := floorShape(m)
	require.Equal(t, [3]int{m.Scenario.Shape.H, m.Scenario.Shape.W, m.Scenario.Shape.F}, shape)

	counts := countStatuses(m)
	total := 0
	for _, n := range counts {
		total += n
	}
	require.Equal(t, wantAgents, total)
}

