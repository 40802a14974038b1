package scenario

import (
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"epidemsim/internal/config"
	"epidemsim/internal/grid"
	"github.com/stretchr/testify/require"
)

func writeOpenFloor(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func baseScenarioConfig(t *testing.T, w, h int) config.ScenarioConfig {
	dir := t.TempDir()
	writeOpenFloor(t, filepath.Join(dir, "0.png"), w, h)
	return config.ScenarioConfig{
		Sim: config.SimConfig{
			Name:           "test",
			Mapfile:        dir,
			XYScale:        1,
			TStep:          3600,
			SaveResolution: 1,
			MaxIter:        1,
			Terrain: []config.TerrainEntry{
				{Name: "open", Hex: "#ffffff", Walkable: true},
			},
		},
		Virus: config.VirusConfig{AttackRate: 0.5, InfectionRate: 0.1, FatalityRate: 0.02},
		Prevention: config.PreventionConfig{
			Mask: map[string]float64{"none": 0, "n95": 0.9},
			Vax:  map[string][]float64{"none": {0, 0, 0}, "mrna": {0, 0.6, 0.9}},
		},
	}
}

func TestLoadBuildsScenarioOverOpenFloor(t *testing.T) {
	sc := baseScenarioConfig(t, 5, 5)
	s, err := Load(sc)
	require.NoError(t, err)
	require.Equal(t, grid.Shape{H: 5, W: 5, F: 1}, s.Shape)
	require.NotNil(t, s.Masks["VALID"])
	require.Equal(t, "07:00", s.NowHHMM())
}

func TestDecayFactorMatchesThreeHourHalfLife(t *testing.T) {
	sc := baseScenarioConfig(t, 3, 3)
	sc.Sim.TStep = 3 * 3600
	s, err := Load(sc)
	require.NoError(t, err)
	require.InDelta(t, 0.15, s.DecayFactor(), 1e-9)
}

func TestAdvanceFlipsCheckScheduleOnMinuteChange(t *testing.T) {
	sc := baseScenarioConfig(t, 3, 3)
	sc.Sim.TStep = 30 // seconds, sub-minute
	s, err := Load(sc)
	require.NoError(t, err)

	s.Advance()
	require.False(t, s.CheckSchedule(), "30s step from :00:00 lands on :00:30, same minute")
	s.Advance()
	require.True(t, s.CheckSchedule(), "second 30s step crosses into the next minute")
}

func TestPreventionIndexCombinesMaskAndVax(t *testing.T) {
	p := Prevention{
		Mask: map[string]float64{"n95": 0.9},
		Vax:  map[string][]float64{"mrna": {0, 0.6, 0.9}},
	}
	idx := p.Index("n95", "mrna", 2)
	require.InDelta(t, 0.9+(1-0.9)*0.9, idx, 1e-9)
}

func TestBuildPathfinderAndPathfindRoundTrip(t *testing.T) {
	sc := baseScenarioConfig(t, 6, 6)
	s, err := Load(sc)
	require.NoError(t, err)
	require.NoError(t, s.BuildPathfinder())

	start, end := grid.Cell{X: 0, Y: 0, Z: 0}, grid.Cell{X: 5, Y: 5, Z: 0}
	path, err := s.Pathfind(start, end)
	require.NoError(t, err)
	require.Equal(t, start, path[0])
	require.Equal(t, end, path[len(path)-1])
}

func TestRandomCellInZoneUnknownZoneErrors(t *testing.T) {
	sc := baseScenarioConfig(t, 3, 3)
	s, err := Load(sc)
	require.NoError(t, err)
	_, err = s.RandomCellInZone("NOPE", rand.New(rand.NewSource(1)))
	require.Error(t, err)
}

func TestVentilateKeepsFieldWithinBounds(t *testing.T) {
	sc := baseScenarioConfig(t, 5, 5)
	s, err := Load(sc)
	require.NoError(t, err)
	s.Contaminate(grid.Cell{X: 2, Y: 2, Z: 0}, 20000)
	s.Ventilate()
	for _, v := range s.Field.Grid {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, float64(16384))
	}
}
