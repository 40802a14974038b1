// Package terrain classifies a raster building footprint (one PNG per
// floor, with optional transit-node overlays) into named boolean masks
// driving scenario movement.
package terrain

import (
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"epidemsim/internal/config"
	"epidemsim/internal/errs"
	"epidemsim/internal/grid"
)

// TransitNodesName, ValidName and BarrierName are the derived mask keys
// computed after every configured terrain entry has been applied.
const (
	TransitNodesName = "TRANSIT_NODES"
	ValidName        = "VALID"
	BarrierName      = "BARRIER"
)

// barrierTerrains lists the terrain names ORed into BARRIER.
var barrierTerrains = map[string]bool{"WALL": true, "DOOR": true, "STAIRS": true, "EXIT": true}

const transitCyan = "#00ffff"

// colorTolerance bounds the per-channel distance used to match a pixel
// against a terrain's hex swatch, to absorb minor PNG re-encoding noise.
const colorTolerance = 2

// Loaded is the output of classifying a scenario's map: its shape, the
// named mask set, and precomputed index lists per mask.
type Loaded struct {
	Shape    grid.Shape
	Masks    map[string]*grid.Mask3D
	MaskIdxs map[string][]grid.Cell
}

// Load classifies the map at path (a single image file, or a directory of
// per-floor images) against the given terrain entries.
func Load(path string, entries []config.TerrainEntry) (*Loaded, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrBadMap, "stat %s: %v", path, err)
	}

	var floorPaths, nodePaths []string
	if info.IsDir() {
		floorPaths, nodePaths, err = scanFloors(path)
		if err != nil {
			return nil, err
		}
	} else {
		floorPaths = []string{path}
	}
	if len(floorPaths) == 0 {
		return nil, errs.Wrap(errs.ErrBadMap, "no image layer found under %s", path)
	}

	floors := make([]image.Image, len(floorPaths))
	var w, h int
	for i, fp := range floorPaths {
		img, err := decodeImage(fp)
		if err != nil {
			return nil, errs.Wrap(errs.ErrBadMap, "decoding %s: %v", fp, err)
		}
		b := img.Bounds()
		if i == 0 {
			w, h = b.Dx(), b.Dy()
		} else if b.Dx() != w || b.Dy() != h {
			return nil, errs.Wrap(errs.ErrBadMap, "floor %s has shape (%d,%d), expected (%d,%d)", fp, b.Dx(), b.Dy(), w, h)
		}
		floors[i] = img
	}

	shape := grid.Shape{H: h, W: w, F: len(floors)}
	masks := map[string]*grid.Mask3D{}
	idxs := map[string][]grid.Cell{}

	hasNodes := false
	for _, np := range nodePaths {
		if np != "" {
			hasNodes = true
			break
		}
	}
	if hasNodes {
		transit := grid.NewMask3D(shape)
		for i, np := range nodePaths {
			if np == "" {
				continue
			}
			img, err := decodeImage(np)
			if err != nil {
				return nil, errs.Wrap(errs.ErrBadMap, "decoding %s: %v", np, err)
			}
			paintMaskFromColor(transit, img, i, transitCyan)
		}
		masks[TransitNodesName] = transit
		idxs[TransitNodesName] = transit.Indices()
	}

	valid := grid.NewMask3DFilled(shape, true)
	barrier := grid.NewMask3D(shape)

	for _, te := range entries {
		m := grid.NewMask3D(shape)
		floor, floorSpecific, ferr := floorIndexFromName(te.Name)
		if ferr != nil {
			return nil, errs.Wrap(errs.ErrBadConfig, "terrain %q: %v", te.Name, ferr)
		}
		if floorSpecific {
			if floor < 0 || floor >= len(floors) {
				return nil, errs.Wrap(errs.ErrBadConfig, "terrain %q references floor %d out of range", te.Name, floor)
			}
			paintMaskOnFloor(m, floors[floor], floor, te.Hex)
		} else {
			for z, img := range floors {
				paintMaskOnFloor(m, img, z, te.Hex)
			}
		}
		masks[te.Name] = m
		idxs[te.Name] = m.Indices()

		if te.Restricted || !te.Walkable {
			valid.AndNot(m)
		} else {
			valid.Or(m)
		}

		upper := strings.ToUpper(te.Name)
		if barrierTerrains[upper] {
			barrier.Or(m)
		}
	}

	masks[ValidName] = valid
	idxs[ValidName] = valid.Indices()
	masks[BarrierName] = barrier
	idxs[BarrierName] = barrier.Indices()

	return &Loaded{Shape: shape, Masks: masks, MaskIdxs: idxs}, nil
}

// scanFloors lists sorted *.png floor files and their matching *.nodes.png
// overlays (by sort position) under a scenario map directory.
func scanFloors(dir string) (floors, nodes []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrBadMap, "reading map dir %s: %v", dir, err)
	}
	var floorNames, nodeNames []string
	nodeByBase := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".png") {
			continue
		}
		if strings.Contains(e.Name(), ".nodes") {
			base := strings.Replace(e.Name(), ".nodes.png", ".png", 1)
			nodeByBase[base] = filepath.Join(dir, e.Name())
			continue
		}
		floorNames = append(floorNames, e.Name())
	}
	sort.Strings(floorNames)
	for _, name := range floorNames {
		floors = append(floors, filepath.Join(dir, name))
		nodeNames = append(nodeNames, nodeByBase[name])
	}
	return floors, nodeNames, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// floorIndexFromName implements spec.md's "if the terrain name ends with a
// digit, interpret the third-from-last character as a floor index" rule,
// carried over literally from original_source's `terrain.name[-3]`.
func floorIndexFromName(name string) (floor int, floorSpecific bool, err error) {
	if len(name) == 0 || !isDigit(name[len(name)-1]) {
		return 0, false, nil
	}
	idx := len(name) - 3
	if idx < 0 {
		return 0, false, errs.Wrap(errs.ErrBadConfig, "name %q too short to carry a floor-index digit", name)
	}
	if !isDigit(name[idx]) {
		return 0, false, errs.Wrap(errs.ErrBadConfig, "name %q does not carry a floor-index digit at position -3", name)
	}
	return int(name[idx] - '0'), true, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func paintMaskOnFloor(m *grid.Mask3D, img image.Image, z int, hex string) {
	r0, g0, b0, err := hexToRGB(hex)
	if err != nil {
		return
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if closeChannel(r, r0) && closeChannel(g, g0) && closeChannel(b, b0) {
				m.Set(grid.Cell{X: x - bounds.Min.X, Y: y - bounds.Min.Y, Z: z}, true)
			}
		}
	}
}

func paintMaskFromColor(m *grid.Mask3D, img image.Image, z int, hex string) {
	paintMaskOnFloor(m, img, z, hex)
}

func hexToRGB(hex string) (r, g, b uint8, err error) {
	hex = strings.TrimPrefix(hex, "#")
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, err
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}

func closeChannel(pixel uint32, want uint8) bool {
	p8 := uint8(pixel >> 8)
	d := int(p8) - int(want)
	if d < 0 {
		d = -d
	}
	return d <= colorTolerance
}
