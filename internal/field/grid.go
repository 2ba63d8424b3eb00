// Package field provides the square float grids that carry height and
// normal-source data between the synthesis stages.
package field

import (
	"fmt"
	"image"
	"math"
)

// Grid is an N×N grid of float32 samples stored row-major.
type Grid struct {
	Pix  []float32
	Size int
}

// Stats summarizes the distribution of a grid.
type Stats struct {
	Mean     float64
	Variance float64
	Min      float64
	Max      float64
}

// New allocates a zeroed size×size grid.
func New(size int) (*Grid, error) {
	if size <= 0 {
		return nil, fmt.Errorf("grid size must be positive, got %d", size)
	}
	return &Grid{
		Size: size,
		Pix:  make([]float32, size*size),
	}, nil
}

func (g *Grid) idx(x, y int) int { return y*g.Size + x }

// At returns the sample at (x, y).
func (g *Grid) At(x, y int) float32 { return g.Pix[g.idx(x, y)] }

// Set stores v at (x, y).
func (g *Grid) Set(x, y int, v float32) { g.Pix[g.idx(x, y)] = v }

// FromGray converts an 8-bit image into a grid scaled to [0,1].
// The image must be square.
func FromGray(img *image.Gray) (*Grid, error) {
	b := img.Bounds()
	if b.Dx() != b.Dy() {
		return nil, fmt.Errorf("image must be square, got %dx%d", b.Dx(), b.Dy())
	}
	g, err := New(b.Dx())
	if err != nil {
		return nil, err
	}
	for y := 0; y < g.Size; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		row := img.Pix[off : off+g.Size]
		out := g.Pix[y*g.Size : (y+1)*g.Size]
		for x, v := range row {
			out[x] = float32(v) / 255
		}
	}
	return g, nil
}

// ToGray quantizes the grid into an 8-bit image. Values are clamped to [0,1]
// and truncated, so 0.999 maps to 254.
func (g *Grid) ToGray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Size, g.Size))
	for y := 0; y < g.Size; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+g.Size]
		in := g.Pix[y*g.Size : (y+1)*g.Size]
		for x, v := range in {
			row[x] = uint8(clamp01(v) * 255)
		}
	}
	return img
}

// AccumulateGray adds img/255*weight into the grid. img must match the grid size.
func (g *Grid) AccumulateGray(img *image.Gray, weight float32) error {
	b := img.Bounds()
	if b.Dx() != g.Size || b.Dy() != g.Size {
		return fmt.Errorf("layer is %dx%d, grid is %dx%d", b.Dx(), b.Dy(), g.Size, g.Size)
	}
	scale := weight / 255
	for y := 0; y < g.Size; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		row := img.Pix[off : off+g.Size]
		out := g.Pix[y*g.Size : (y+1)*g.Size]
		for x, v := range row {
			out[x] += float32(v) * scale
		}
	}
	return nil
}

// Scale multiplies every sample by f.
func (g *Grid) Scale(f float32) {
	for i := range g.Pix {
		g.Pix[i] *= f
	}
}

// Clamp01 clamps every sample into [0,1].
func (g *Grid) Clamp01() {
	for i, v := range g.Pix {
		g.Pix[i] = clamp01(v)
	}
}

// Stats computes mean, variance and range in a single pass.
func (g *Grid) Stats() Stats {
	if len(g.Pix) == 0 {
		return Stats{}
	}
	var sum, sumSq float64
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, v := range g.Pix {
		f := float64(v)
		sum += f
		sumSq += f * f
		if f < minV {
			minV = f
		}
		if f > maxV {
			maxV = f
		}
	}
	n := float64(len(g.Pix))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return Stats{Mean: mean, Variance: variance, Min: minV, Max: maxV}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
