package generator

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/surfacegen/internal/material"
	"github.com/MeKo-Tech/surfacegen/internal/noise"
)

// Parameter bounds.
const (
	MinResolution     = 1024
	MaxResolution     = 16384
	MinNoiseScale     = 20.0
	MaxNoiseScale     = 200.0
	MinOctaves        = 1
	MaxOctaves        = 6
	MinDensity        = 0.1
	MaxDensity        = 1.0
	MinColorVariation = 0.0
	MaxColorVariation = 1.0
	MinNormalStrength = 1.0
	MaxNormalStrength = 20.0

	// MinAdjustedScale is the floor applied by AdjustedScale.
	MinAdjustedScale = 10.0
	// referenceResolution is the size at which NoiseScale is taken at face value.
	referenceResolution = 1024
)

// Resolutions lists the supported square output sizes.
func Resolutions() []int { return []int{1024, 2048, 4096, 8192, 16384} }

// Params is one immutable generation request.
type Params struct {
	// Seed makes the run reproducible when set; nil draws a fresh seed.
	Seed           *int64        `json:"seed,omitempty"`
	Material       material.Kind `json:"material"`
	Basis          noise.Basis   `json:"basis"`
	Resolution     int           `json:"resolution"`
	NoiseScale     float64       `json:"noise_scale"`
	Octaves        int           `json:"octaves"`
	Density        float64       `json:"density"`
	ColorVariation float64       `json:"color_variation"`
	NormalStrength float64       `json:"normal_strength"`
}

// DefaultParams returns the stock grass settings.
func DefaultParams() Params {
	return Params{
		Material:       material.Grass,
		Basis:          noise.BasisValue,
		Resolution:     1024,
		NoiseScale:     60,
		Octaves:        3,
		Density:        0.6,
		ColorVariation: 0.5,
		NormalStrength: 5,
	}
}

// Validate checks every field against its bounds.
func (p Params) Validate() error {
	if _, err := material.For(p.Material); err != nil {
		return invalid("material", err.Error())
	}
	if p.Basis != noise.BasisValue && p.Basis != noise.BasisPerlin {
		return invalid("basis", fmt.Sprintf("unknown basis %s", p.Basis))
	}
	if !validResolution(p.Resolution) {
		return invalid("resolution", fmt.Sprintf("%d is not one of %v", p.Resolution, Resolutions()))
	}
	if p.Octaves < MinOctaves || p.Octaves > MaxOctaves {
		return invalid("octaves", fmt.Sprintf("%d outside [%d,%d]", p.Octaves, MinOctaves, MaxOctaves))
	}

	ranges := []struct {
		name     string
		v        float64
		min, max float64
	}{
		{"noise_scale", p.NoiseScale, MinNoiseScale, MaxNoiseScale},
		{"density", p.Density, MinDensity, MaxDensity},
		{"color_variation", p.ColorVariation, MinColorVariation, MaxColorVariation},
		{"normal_strength", p.NormalStrength, MinNormalStrength, MaxNormalStrength},
	}
	for _, r := range ranges {
		if math.IsNaN(r.v) || r.v < r.min || r.v > r.max {
			return invalid(r.name, fmt.Sprintf("%v outside [%v,%v]", r.v, r.min, r.max))
		}
	}
	return nil
}

// AdjustedScale scales noiseScale with the output size so features keep the
// same apparent size at every resolution. The result never drops below
// MinAdjustedScale.
func AdjustedScale(noiseScale float64, size int) float64 {
	resMult := float64(size) / referenceResolution
	adj := noiseScale * (resMult * 0.5)
	if adj < MinAdjustedScale {
		adj = MinAdjustedScale
	}
	return adj
}

func validResolution(n int) bool {
	for _, r := range Resolutions() {
		if n == r {
			return true
		}
	}
	return false
}

func invalid(field, detail string) error {
	return &Error{Kind: KindInvalidParameter, Op: "validate " + field, Detail: detail}
}
