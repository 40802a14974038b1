package model

import (
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"epidemsim/internal/agent"
	"epidemsim/internal/config"
	"github.com/stretchr/testify/require"
)

// writeQuadrantFloor paints an 8x8 single-floor map split into four 4x4
// zone quadrants: HOME (top-left), WORK (top-right), OPEN (bottom-left),
// EXIT (bottom-right).
func writeQuadrantFloor(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			switch {
			case x < 4 && y < 4:
				img.Set(x, y, color.RGBA{255, 0, 0, 255}) // HOME
			case x >= 4 && y < 4:
				img.Set(x, y, color.RGBA{0, 255, 0, 255}) // WORK
			case x < 4 && y >= 4:
				img.Set(x, y, color.RGBA{0, 0, 255, 255}) // OPEN
			default:
				img.Set(x, y, color.RGBA{255, 255, 0, 255}) // EXIT
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
		},
	}
}

func TestNewBuildsScenarioAndPopulation(t *testing.T) {
	cfg := testConfig(t, 5, 2)
	m, err := New(cfg, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, m.Agents, 5)

	infected := 0
	for _, a := range m.Agents {
		if a.Status == agent.Infected {
			infected++
		}
	}
	require.Equal(t, 2, infected)
}

func TestStepAdvancesClockAndProducesSnapshot(t *testing.T) {
	cfg := testConfig(t, 3, 0)
	m, err := New(cfg, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	require.NoError(t, m.Step())
	snap := m.Snapshot(1000)
	require.Len(t, snap.Agents, 3)
	require.Nil(t, snap.Virus, "save_verbose is false by default")
	for _, frame := range snap.Agents {
		require.Equal(t, int16(1), frame[3], "SUSCEPTIBLE must serialize as 1")
	}
}

func TestSnapshotIncludesVirusWhenSaveVerbose(t *testing.T) {
	cfg := testConfig(t, 2, 0)
	cfg.Scenario.Sim.SaveVerbose = true
	m, err := New(cfg, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	snap := m.Snapshot(0)
	require.NotNil(t, snap.Virus)
	require.Len(t, snap.Virus, m.Scenario.Shape.Size())
}

func TestSummarizeAgentsProducesOneRowPerAgent(t *testing.T) {
	cfg := testConfig(t, 4, 1)
	m, err := New(cfg, rand.New(rand.NewSource(4)))
	require.NoError(t, err)
	summary := m.SummarizeAgents()
	require.Len(t, summary, 4)
	for _, row := range summary {
		require.Equal(t, 4, row.Capacity)
		require.Contains(t, []string{"M", "F"}, row.Sex)
		require.Equal(t, "nomask", row.Mask)
		require.Equal(t, "novax", row.Vax)
	}
}

func TestAllSusceptibleZeroVirusStaysSusceptible(t *testing.T) {
	cfg := testConfig(t, 10, 0)
	cfg.Scenario.Virus.AttackRate = 0
	m, err := New(cfg, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, m.Step())
	}
	for _, a := range m.Agents {
		require.Equal(t, agent.Susceptible, a.Status)
		require.Equal(t, int16(1), int16(a.Status), "SUSCEPTIBLE must serialize as 1")
	}
	for _, v := range m.Scenario.Field.Grid {
		require.Zero(t, v)
	}
}
