package pathfinder

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"epidemsim/internal/grid"
	"epidemsim/internal/pathgraph"
	"github.com/stretchr/testify/require"
)

// buildOpenFloor constructs a fully-open single-floor grid with a handful
// of transit nodes scattered across it.
func buildOpenFloor(t *testing.T, w, h int) (*pathgraph.Graph, []grid.Cell, []grid.Cell) {
	t.Helper()
	shape := grid.Shape{H: h, W: w, F: 1}
	valid := grid.NewMask3DFilled(shape, true)
	classic := pathgraph.New(shape, valid, nil, nil)

	var all []grid.Cell
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			all = append(all, grid.Cell{X: x, Y: y, Z: 0})
		}
	}
	transit := []grid.Cell{{X: 0, Y: 0, Z: 0}, {X: w - 1, Y: h - 1, Z: 0}}
	return classic, all, transit
}

func TestOptimizedPathfinderMatchesClassicEndpoints(t *testing.T) {
	classic, all, transit := buildOpenFloor(t, 10, 10)
	table, err := Build(classic, all, transit)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		a := all[rng.Intn(len(all))]
		b := all[rng.Intn(len(all))]

		classicPath, err := classic.Pathfind(a, b)
		require.NoError(t, err)

		optPath, err := table.Pathfind(a, b)
		require.NoError(t, err)

		require.Equal(t, a, optPath[0])
		require.Equal(t, b, optPath[len(optPath)-1])
		for j := 1; j < len(optPath); j++ {
			dx := math.Abs(float64(optPath[j].X - optPath[j-1].X))
			dy := math.Abs(float64(optPath[j].Y - optPath[j-1].Y))
			dz := math.Abs(float64(optPath[j].Z - optPath[j-1].Z))
			require.LessOrEqual(t, dx+dy+dz, 1.0)
		}
		require.LessOrEqual(t, len(classicPath), len(optPath))
	}
}

func TestPathfinderStartEqualsEnd(t *testing.T) {
	classic, all, transit := buildOpenFloor(t, 3, 3)
	table, err := Build(classic, all, transit)
	require.NoError(t, err)
	path, err := table.Pathfind(all[0], all[0])
	require.NoError(t, err)
	require.Equal(t, []grid.Cell{all[0]}, path)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	classic, all, transit := buildOpenFloor(t, 5, 5)
	table, err := Build(classic, all, transit)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cache.gob.gz")
	require.NoError(t, table.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	for _, c := range all {
		require.Equal(t, table.Anchor[c], loaded.Anchor[c])
	}
	a, b := all[0], all[len(all)-1]
	p1, err := table.Pathfind(a, b)
	require.NoError(t, err)
	p2, err := loaded.Pathfind(a, b)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
}
