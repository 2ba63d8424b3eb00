package material

import (
	"context"
	"fmt"
	"image"
)

type dirt struct{}

func (dirt) Kind() Kind { return Dirt }

// Composite blends wet mud into dry dirt by height and scatters grey pebbles
// over it. A pixel is a pebble when its scatter sample exceeds
// 1 - Density*0.2; pebbles get jittered grey albedo, fixed roughness and a
// small bump in the normal source.
func (dirt) Composite(ctx context.Context, in Input) (*Output, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Source == nil {
		return nil, fmt.Errorf("dirt: missing noise source")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := in.Height.Size
	scatter, err := in.Source.Float(n)
	if err != nil {
		return nil, fmt.Errorf("dirt scatter: %w", err)
	}

	albedo := image.NewNRGBA(image.Rect(0, 0, n, n))
	rough := image.NewGray(image.Rect(0, 0, n, n))
	// The scatter samples are only needed for this pass, so the grid is
	// rewritten in place into the normal source.
	nsrc := scatter
	threshold := float32(PebbleThreshold(in.Density))
	pebbles := 0

	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			i := y*n + x
			h := in.Height.Pix[i]
			s := scatter.Pix[i]
			ai := y*albedo.Stride + 4*x
			ri := y*rough.Stride + x

			if s > threshold {
				pebbles++
				j := float64(s) * pebbleJitter
				setRGB(albedo.Pix, ai, rgb{rockGrey[0] + j, rockGrey[1] + j, rockGrey[2] + j})
				rough.Pix[ri] = pebbleRoughness
				nsrc.Pix[i] = h + pebbleBump
				continue
			}

			setRGB(albedo.Pix, ai, mix(wetMud, dryDirt, float64(h)))
			rough.Pix[ri] = toByte(float64(h) * 255)
			nsrc.Pix[i] = h
		}
	}

	return &Output{
		Albedo:         albedo,
		Roughness:      rough,
		NormalSource:   nsrc,
		PebbleCoverage: float64(pebbles) / float64(n*n),
	}, nil
}

// PebbleThreshold returns the scatter value above which a pixel is a pebble.
func PebbleThreshold(density float64) float64 {
	return 1 - density*pebbleThreshold
}
