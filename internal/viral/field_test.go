package viral

import (
	"testing"

	"epidemsim/internal/grid"
	"github.com/stretchr/testify/require"
)

func flatShape(h, w int) grid.Shape {
	return grid.Shape{H: h, W: w, F: 1}
}

func TestContaminateAndLevel(t *testing.T) {
	f := New(flatShape(5, 5), nil)
	c := grid.Cell{X: 2, Y: 2, Z: 0}
	f.Contaminate(c, 100)
	require.Equal(t, 100.0, f.Level(c))
	f.Contaminate(c, 50)
	require.Equal(t, 150.0, f.Level(c))
}

func TestSanitizeZeroesGrid(t *testing.T) {
	f := New(flatShape(3, 3), nil)
	f.Contaminate(grid.Cell{X: 1, Y: 1, Z: 0}, Scale)
	f.Sanitize()
	for _, v := range f.Grid {
		require.Zero(t, v)
	}
}

func TestVentilateSpreadsMassWithoutDecay(t *testing.T) {
	f := New(flatShape(9, 9), nil)
	center := grid.Cell{X: 4, Y: 4, Z: 0}
	f.Contaminate(center, Scale)

	massBefore := sum(f.Grid)
	f.Ventilate(0.459, 1.0, Scale) // no decay, check diffusion alone
	massAfter := sum(f.Grid)

	require.Less(t, f.Level(center), massBefore, "peak should spread out")
	require.InDelta(t, massBefore, massAfter, massBefore*0.05, "mass roughly conserved by blur under no decay")

	neighbor := grid.Cell{X: 5, Y: 4, Z: 0}
	require.Greater(t, f.Level(neighbor), 0.0, "neighboring cell should receive diffused concentration")
}

func TestVentilateDecayReducesTotal(t *testing.T) {
	f := New(flatShape(5, 5), nil)
	c := grid.Cell{X: 2, Y: 2, Z: 0}
	f.Contaminate(c, Scale)
	f.Ventilate(0.459, 0.15, Scale)
	require.Less(t, sum(f.Grid), float64(Scale))
}

func TestVentilateClampsToMax(t *testing.T) {
	f := New(flatShape(3, 3), nil)
	c := grid.Cell{X: 1, Y: 1, Z: 0}
	f.Contaminate(c, Scale*10)
	f.Ventilate(0, 1.0, Scale)
	for _, v := range f.Grid {
		require.LessOrEqual(t, v, float64(Scale))
		require.GreaterOrEqual(t, v, 0.0)
	}
}

func TestVentilateZeroesBarrierCells(t *testing.T) {
	shape := flatShape(3, 3)
	barrier := grid.NewMask3D(shape)
	barrierCell := grid.Cell{X: 1, Y: 0, Z: 0}
	barrier.Set(barrierCell, true)

	f := New(shape, barrier)
	f.Contaminate(grid.Cell{X: 1, Y: 1, Z: 0}, Scale)
	f.Ventilate(0.459, 1.0, Scale)

	require.Zero(t, f.Level(barrierCell))
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}
