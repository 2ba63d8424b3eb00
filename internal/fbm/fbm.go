// Package fbm stacks octaves of smoothed random noise into a normalized height
// field (fractal Brownian motion).
package fbm

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/surfacegen/internal/field"
	"github.com/MeKo-Tech/surfacegen/internal/noise"
	"github.com/MeKo-Tech/surfacegen/internal/resample"
)

const (
	// Persistence is the per-octave amplitude falloff.
	Persistence = 0.5
	// Lacunarity is the per-octave frequency growth.
	Lacunarity = 2.0
	// BlurDivisor sets the first octave blur radius to size/BlurDivisor.
	BlurDivisor = 150.0
	// MinLowRes is the smallest random grid drawn for an octave.
	MinLowRes = 2
)

// ErrInvalidConfig is returned for a configuration that cannot be synthesized.
var ErrInvalidConfig = errors.New("invalid fbm config")

// OctaveFunc is called before each octave with a 1-based index.
type OctaveFunc func(octave, octaves int)

// Config describes one height field synthesis.
type Config struct {
	Source    *noise.Source
	Resampler resample.Resampler
	OnOctave  OctaveFunc
	Size      int
	BaseScale float64
	Octaves   int
	Basis     noise.Basis
}

// LowRes returns the random grid size for an octave with the given scale.
func LowRes(size int, scale float64) int {
	l := int(math.Floor(float64(size) / scale))
	if l < MinLowRes {
		l = MinLowRes
	}
	return l
}

// Synthesize builds the height field. The result lies in [0,1].
// Each octave layer is released once it has been folded into the accumulator.
func Synthesize(ctx context.Context, cfg Config) (*field.Grid, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	acc, err := field.New(cfg.Size)
	if err != nil {
		return nil, err
	}

	amplitude := 1.0
	frequency := 1.0
	normalizer := 0.0

	for i := 0; i < cfg.Octaves; i++ {
		if cfg.OnOctave != nil {
			cfg.OnOctave(i+1, cfg.Octaves)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		currentScale := cfg.BaseScale / frequency
		lowRes := LowRes(cfg.Size, currentScale)

		layer, err := cfg.layer(lowRes)
		if err != nil {
			return nil, fmt.Errorf("octave %d: %w", i+1, err)
		}
		if i == 0 {
			layer = cfg.Resampler.Blur(layer, float64(cfg.Size)/BlurDivisor)
		}

		if err := acc.AccumulateGray(layer, float32(amplitude)); err != nil {
			return nil, fmt.Errorf("octave %d: %w", i+1, err)
		}
		normalizer += amplitude

		amplitude *= Persistence
		frequency *= Lacunarity
	}

	acc.Scale(float32(1 / normalizer))
	acc.Clamp01()
	return acc, nil
}

func (cfg Config) layer(lowRes int) (*image.Gray, error) {
	if cfg.Basis == noise.BasisPerlin {
		return cfg.Source.Perlin(lowRes, cfg.Size)
	}
	grid, err := cfg.Source.Gray(lowRes)
	if err != nil {
		return nil, err
	}
	return cfg.Resampler.Upsample(grid, cfg.Size), nil
}

func (cfg Config) validate() error {
	switch {
	case cfg.Size <= 0:
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, cfg.Size)
	case cfg.Octaves < 1:
		return fmt.Errorf("%w: octaves must be at least 1, got %d", ErrInvalidConfig, cfg.Octaves)
	case !(cfg.BaseScale > 0) || math.IsInf(cfg.BaseScale, 0):
		return fmt.Errorf("%w: base scale must be positive and finite, got %v", ErrInvalidConfig, cfg.BaseScale)
	case cfg.Source == nil:
		return fmt.Errorf("%w: missing noise source", ErrInvalidConfig)
	case cfg.Resampler == nil:
		return fmt.Errorf("%w: missing resampler", ErrInvalidConfig)
	}
	return nil
}
