// Package noise produces the raw random fields that seed every octave and the
// dirt scatter mask.
package noise

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"math/rand"
	"strings"

	"github.com/aquilax/go-perlin"

	"github.com/MeKo-Tech/surfacegen/internal/field"
)

// Basis selects how an octave layer is produced.
type Basis int

const (
	// BasisValue draws a low resolution uniform grid and lets the resampler
	// smooth it to full size.
	BasisValue Basis = iota
	// BasisPerlin renders gradient noise directly at full size.
	BasisPerlin
)

func (b Basis) String() string {
	switch b {
	case BasisValue:
		return "value"
	case BasisPerlin:
		return "perlin"
	default:
		return fmt.Sprintf("basis(%d)", int(b))
	}
}

// ParseBasis parses "value" or "perlin". An empty string selects BasisValue.
func ParseBasis(s string) (Basis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "value":
		return BasisValue, nil
	case "perlin":
		return BasisPerlin, nil
	default:
		return BasisValue, fmt.Errorf("unknown noise basis %q (want value or perlin)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (b Basis) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Basis) UnmarshalText(text []byte) error {
	v, err := ParseBasis(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Source is the entropy stream for one generation. It is not safe for
// concurrent use.
type Source struct {
	rng  *rand.Rand
	seed int64
}

// NewSource returns a Source seeded with *seed, or with a fresh random seed
// when seed is nil.
func NewSource(seed *int64) *Source {
	s := freshSeed()
	if seed != nil {
		s = *seed
	}
	return &Source{
		rng:  rand.New(rand.NewSource(s)),
		seed: s,
	}
}

// Seed reports the seed in use, so an unseeded run can be reproduced later.
func (s *Source) Seed() int64 { return s.seed }

func freshSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.Int63()
	}
	return int64(binary.LittleEndian.Uint64(b[:]) &^ (1 << 63))
}

// Gray returns an l×l grid of independent uniform samples in [0,255].
func (s *Source) Gray(l int) (*image.Gray, error) {
	if l < 2 {
		return nil, fmt.Errorf("random field size must be at least 2, got %d", l)
	}
	img := image.NewGray(image.Rect(0, 0, l, l))
	for i := range img.Pix {
		img.Pix[i] = uint8(s.rng.Intn(256))
	}
	return img, nil
}

// Float returns an n×n grid of independent uniform samples in [0,1).
func (s *Source) Float(n int) (*field.Grid, error) {
	g, err := field.New(n)
	if err != nil {
		return nil, err
	}
	for i := range g.Pix {
		g.Pix[i] = s.rng.Float32()
	}
	return g, nil
}

// Perlin renders an n×n layer of gradient noise with l lattice cells across
// the image, so it has the same feature size as Gray(l) upsampled to n. The
// layer is stretched so its darkest sample is 0 and its brightest 255.
func (s *Source) Perlin(l, n int) (*image.Gray, error) {
	if l < 2 {
		return nil, fmt.Errorf("lattice size must be at least 2, got %d", l)
	}
	if n <= 0 {
		return nil, fmt.Errorf("layer size must be positive, got %d", n)
	}

	// One octave only: the FBM engine owns octave stacking.
	p := perlin.NewPerlin(2.0, 2.0, 1, s.rng.Int63())
	freq := float64(l) / float64(n)
	at := func(x, y int) float64 { return p.Noise2D(float64(x)*freq, float64(y)*freq) }

	// First pass finds the range; raw noise only spans a narrow band
	// around zero and is exactly zero on lattice points.
	lo, hi := math.Inf(1), math.Inf(-1)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := at(x, y)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	img := image.NewGray(image.Rect(0, 0, n, n))
	span := hi - lo
	if span <= 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		for i := range img.Pix {
			img.Pix[i] = 128
		}
		return img, nil
	}

	for y := 0; y < n; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+n]
		for x := range row {
			normalized := (at(x, y) - lo) / span
			row[x] = uint8(math.Round(math.Max(0, math.Min(1, normalized)) * 255))
		}
	}
	return img, nil
}
