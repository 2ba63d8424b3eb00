// Package normal derives tangent-space normal maps from scalar fields.
//
// Encoding per pixel, with (gx, gy) the scaled gradient and
// norm = sqrt(gx² + gy² + 1):
//
//	R = ((gx/norm)+1)/2 * 255
//	G = ((gy/norm)+1)/2 * 255
//	B = (1/norm) * 255
//
// B is always positive and norm is never below 1.
package normal

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/surfacegen/internal/field"
)

// ErrNonFinite is returned when a gradient evaluates to NaN or ±Inf.
var ErrNonFinite = errors.New("non-finite gradient")

// Derive computes the normal map of src scaled by intensity.
// Gradients use central differences inside the grid and one-sided
// differences on the border.
func Derive(src *field.Grid, intensity float64) (*image.NRGBA, error) {
	if src == nil || src.Size <= 0 {
		return nil, errors.New("source field is empty")
	}
	if math.IsNaN(intensity) || math.IsInf(intensity, 0) {
		return nil, fmt.Errorf("%w: intensity %v", ErrNonFinite, intensity)
	}

	n := src.Size
	out := image.NewNRGBA(image.Rect(0, 0, n, n))

	for y := 0; y < n; y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+4*n]
		for x := 0; x < n; x++ {
			gx, gy := Gradient(src, x, y)
			gx *= intensity
			gy *= intensity
			if !finite(gx) || !finite(gy) {
				return nil, fmt.Errorf("%w at (%d,%d)", ErrNonFinite, x, y)
			}

			c := Encode(gx, gy)
			i := 4 * x
			row[i+0] = c.R
			row[i+1] = c.G
			row[i+2] = c.B
			row[i+3] = c.A
		}
	}
	return out, nil
}

// Gradient returns the discrete derivative of src at (x, y) along x and y.
func Gradient(src *field.Grid, x, y int) (gx, gy float64) {
	n := src.Size
	if n < 2 {
		return 0, 0
	}
	return diff(src, x, y, 1, 0, n), diff(src, x, y, 0, 1, n)
}

func diff(src *field.Grid, x, y, dx, dy, n int) float64 {
	pos := x*dx + y*dy
	switch pos {
	case 0:
		return float64(src.At(x+dx, y+dy)) - float64(src.At(x, y))
	case n - 1:
		return float64(src.At(x, y)) - float64(src.At(x-dx, y-dy))
	default:
		return (float64(src.At(x+dx, y+dy)) - float64(src.At(x-dx, y-dy))) / 2
	}
}

// Encode packs a scaled gradient into an opaque RGB pixel.
func Encode(gx, gy float64) color.NRGBA {
	norm := math.Sqrt(gx*gx + gy*gy + 1)
	return color.NRGBA{
		R: toByte((gx/norm + 1) / 2 * 255),
		G: toByte((gy/norm + 1) / 2 * 255),
		B: toByte(1 / norm * 255),
		A: 255,
	}
}

// Decode maps an encoded pixel back to its normal vector.
// X and Y land in [-1,1], Z in [0,1].
func Decode(c color.NRGBA) mgl64.Vec3 {
	return mgl64.Vec3{
		float64(c.R)/255*2 - 1,
		float64(c.G)/255*2 - 1,
		float64(c.B) / 255,
	}
}

// Stats summarizes the decoded normals of a map.
type Stats struct {
	MeanZ        float64
	MinZ         float64
	MaxLengthErr float64 // largest | |n| - 1 | over all pixels
}

// Measure decodes every pixel of img and reports Stats.
func Measure(img *image.NRGBA) Stats {
	b := img.Bounds()
	if b.Empty() {
		return Stats{}
	}
	s := Stats{MinZ: math.Inf(1)}
	var sumZ float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := Decode(img.NRGBAAt(x, y))
			sumZ += v.Z()
			if v.Z() < s.MinZ {
				s.MinZ = v.Z()
			}
			if e := math.Abs(v.Len() - 1); e > s.MaxLengthErr {
				s.MaxLengthErr = e
			}
		}
	}
	s.MeanZ = sumZ / float64(b.Dx()*b.Dy())
	return s
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func toByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
