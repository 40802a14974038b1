package terrain

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"epidemsim/internal/config"
	"epidemsim/internal/grid"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int, fill func(x, y int) color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadSingleFloorClassifiesMasks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.png")
	writePNG(t, path, 4, 4, func(x, y int) color.Color {
		if x == 0 {
			return color.RGBA{0, 0, 0, 255} // wall
		}
		return color.RGBA{255, 255, 255, 255} // open
	})

	entries := []config.TerrainEntry{
		{Name: "wall", Hex: "#000000", Walkable: false, Restricted: true},
		{Name: "open", Hex: "#ffffff", Walkable: true},
	}
	loaded, err := Load(path, entries)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Shape.F)

	for y := 0; y < 4; y++ {
		require.True(t, loaded.Masks[BarrierName].At(grid1(0, y, 0)))
		require.False(t, loaded.Masks["wall"].At(grid1(1, y, 0)))
		require.True(t, loaded.Masks["wall"].At(grid1(0, y, 0)))
		require.True(t, loaded.Masks[ValidName].At(grid1(1, y, 0)))
		require.False(t, loaded.Masks[ValidName].At(grid1(0, y, 0)))
	}
}

func TestLoadDirectoryStacksFloorsAndTransitNodes(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "0.png"), 2, 2, func(x, y int) color.Color {
		return color.RGBA{255, 255, 255, 255}
	})
	writePNG(t, filepath.Join(dir, "1.png"), 2, 2, func(x, y int) color.Color {
		return color.RGBA{255, 255, 255, 255}
	})
	writePNG(t, filepath.Join(dir, "0.nodes.png"), 2, 2, func(x, y int) color.Color {
		if x == 0 && y == 0 {
			return color.RGBA{0, 255, 255, 255}
		}
		return color.RGBA{0, 0, 0, 0}
	})

	entries := []config.TerrainEntry{
		{Name: "open", Hex: "#ffffff", Walkable: true},
	}
	loaded, err := Load(dir, entries)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Shape.F)
	require.True(t, loaded.Masks[TransitNodesName].At(grid1(0, 0, 0)))
	require.False(t, loaded.Masks[TransitNodesName].At(grid1(1, 1, 1)))
}

func TestFloorIndexFromName(t *testing.T) {
	floor, ok, err := floorIndexFromName("wa0l0")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, floor)

	_, ok, err = floorIndexFromName("open")
	require.NoError(t, err)
	require.False(t, ok)
}

func grid1(x, y, z int) grid.Cell {
	return grid.Cell{X: x, Y: y, Z: z}
}
