package material

import (
	"context"
	"fmt"
	"image"

	"github.com/MeKo-Tech/surfacegen/internal/field"
	"github.com/MeKo-Tech/surfacegen/internal/resample"
)

type grass struct{}

func (grass) Kind() Kind { return Grass }

// Composite squashes the height field vertically and stretches it back so the
// isotropic noise turns into blade-like strands, then colors the strands from
// dark to fresh green. Pixels whose height is below 1-ColorVariation are mixed
// toward dead yellow.
func (grass) Composite(ctx context.Context, in Input) (*Output, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Resampler == nil {
		return nil, fmt.Errorf("grass: missing resampler")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	strands, err := Strands(in.Height, in.Resampler)
	if err != nil {
		return nil, fmt.Errorf("grass strands: %w", err)
	}

	n := in.Height.Size
	albedo := image.NewNRGBA(image.Rect(0, 0, n, n))
	rough := image.NewGray(image.Rect(0, 0, n, n))
	threshold := float32(1 - in.ColorVariation)
	// Heights reach exactly 1, so no variation must dry every pixel.
	allDry := in.ColorVariation <= 0

	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			i := y*n + x
			s := float64(strands.Pix[i])

			c := mix(darkGreen, freshGreen, s)
			if allDry || in.Height.Pix[i] < threshold {
				c = rgb{
					deadYellow[0]*deadWeight + c[0]*(1-deadWeight),
					deadYellow[1]*deadWeight + c[1]*(1-deadWeight),
					deadYellow[2]*deadWeight + c[2]*(1-deadWeight),
				}
			}
			setRGB(albedo.Pix, y*albedo.Stride+4*x, c)
			rough.Pix[y*rough.Stride+x] = toByte((s*grassRoughScale + grassRoughOffset) * 255)
		}
	}

	return &Output{
		Albedo:       albedo,
		Roughness:    rough,
		NormalSource: strands,
	}, nil
}

// Strands quantizes h to 8 bits, shrinks it to 1/8 height and resizes it back,
// returning the result scaled to [0,1].
func Strands(h *field.Grid, r resample.Resampler) (*field.Grid, error) {
	n := h.Size
	squashedH := n / strandSquash
	if squashedH < 1 {
		squashedH = 1
	}
	squashed := r.Resize(h.ToGray(), n, squashedH)
	return field.FromGray(r.Resize(squashed, n, n))
}
