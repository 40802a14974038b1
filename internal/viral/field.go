// Package viral implements the airborne contagion density grid: per-tick
// deposition, in-plane Gaussian diffusion, exponential decay, barrier
// zeroing, and saturation clamping.
package viral

import (
	"math"

	"epidemsim/internal/grid"
)

// Scale is the canonical unit of per-cell viral deposit, spec.md's
// VIRUS_SCALE = 2^14.
const Scale = 1 << 14

// Field is a 3D float grid of viral concentration, one layer per floor.
type Field struct {
	Shape   grid.Shape
	Grid    []float64
	Barrier *grid.Mask3D

	scratch []float64 // reused horizontal-pass buffer, sized H*W
}

// New allocates a zeroed viral field over shape. barrier may be nil.
func New(shape grid.Shape, barrier *grid.Mask3D) *Field {
	return &Field{
		Shape:   shape,
		Grid:    make([]float64, shape.Size()),
		Barrier: barrier,
		scratch: make([]float64, shape.H*shape.W),
	}
}

// Level reads the viral concentration at c.
func (f *Field) Level(c grid.Cell) float64 {
	return f.Grid[f.Shape.Index(c)]
}

// Contaminate adds amount to the concentration at c.
func (f *Field) Contaminate(c grid.Cell, amount float64) {
	f.Grid[f.Shape.Index(c)] += amount
}

// Sanitize zeros the entire field.
func (f *Field) Sanitize() {
	for i := range f.Grid {
		f.Grid[i] = 0
	}
}

// Ventilate applies one tick of diffusion: an in-plane Gaussian blur with
// standard deviation sigma truncated at 2σ and zero boundary, barrier
// zeroing, exponential decay, then clamping to [0, max]. All writes happen
// in place against the field's own buffers; no per-tick allocation occurs.
func (f *Field) Ventilate(sigma, decayFactor, max float64) {
	radius := int(math.Ceil(2 * sigma))
	kernel := gaussianKernel(sigma, radius)

	for z := 0; z < f.Shape.F; z++ {
		f.blurFloor(z, kernel, radius)
	}

	if f.Barrier != nil {
		for i, isBarrier := range f.Barrier.Bits {
			if isBarrier {
				f.Grid[i] = 0
			}
		}
	}

	for i := range f.Grid {
		f.Grid[i] *= decayFactor
	}

	for i, v := range f.Grid {
		switch {
		case v < 0:
			f.Grid[i] = 0
		case v > max:
			f.Grid[i] = max
		}
	}
}

// gaussianKernel returns a normalized 1D Gaussian kernel of the given
// radius; sigma == 0 yields the identity kernel (no blur).
func gaussianKernel(sigma float64, radius int) []float64 {
	k := make([]float64, 2*radius+1)
	if sigma <= 0 {
		k[radius] = 1
		return k
	}
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-0.5 * float64(i) * float64(i) / (sigma * sigma))
		k[i+radius] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// blurFloor runs the separable two-pass blur (horizontal then vertical)
// over a single floor layer, writing through f.scratch to avoid allocating.
func (f *Field) blurFloor(z int, kernel []float64, radius int) {
	h, w := f.Shape.H, f.Shape.W

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				xx := x + k
				if xx < 0 || xx >= w {
					continue // constant (zero) boundary
				}
				sum += f.Grid[f.Shape.Index(grid.Cell{X: xx, Y: y, Z: z})] * kernel[k+radius]
			}
			f.scratch[y*w+x] = sum
		}
	}

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				yy := y + k
				if yy < 0 || yy >= h {
					continue
				}
				sum += f.scratch[yy*w+x] * kernel[k+radius]
			}
			f.Grid[f.Shape.Index(grid.Cell{X: x, Y: y, Z: z})] = sum
		}
	}
}
