// Package material turns a height field into albedo, roughness and the field
// that drives the normal map, once per material kind.
package material

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/surfacegen/internal/field"
	"github.com/MeKo-Tech/surfacegen/internal/noise"
	"github.com/MeKo-Tech/surfacegen/internal/resample"
)

// Kind is the closed set of supported materials.
type Kind int

const (
	Grass Kind = iota
	Dirt
)

// Kinds lists every material in display order.
func Kinds() []Kind { return []Kind{Grass, Dirt} }

func (k Kind) String() string {
	switch k {
	case Grass:
		return "grass"
	case Dirt:
		return "dirt"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts "grass", "dirt" and "dirt/ground" in any case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "grass":
		return Grass, nil
	case "dirt", "ground", "dirt/ground":
		return Dirt, nil
	default:
		return Grass, fmt.Errorf("unknown material %q (want grass or dirt)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Input is what every compositor consumes.
type Input struct {
	Height         *field.Grid
	Source         *noise.Source
	Resampler      resample.Resampler
	Density        float64
	ColorVariation float64
}

// Output holds the composited maps. NormalSource feeds the normal derivation.
type Output struct {
	Albedo         *image.NRGBA
	Roughness      *image.Gray
	NormalSource   *field.Grid
	PebbleCoverage float64
}

// Compositor produces the material maps for one Kind.
type Compositor interface {
	Kind() Kind
	Composite(ctx context.Context, in Input) (*Output, error)
}

var compositors = map[Kind]Compositor{
	Grass: grass{},
	Dirt:  dirt{},
}

// For returns the compositor registered for k.
func For(k Kind) (Compositor, error) {
	c, ok := compositors[k]
	if !ok {
		return nil, fmt.Errorf("no compositor for material %s", k)
	}
	return c, nil
}

func (in Input) validate() error {
	if in.Height == nil || in.Height.Size <= 0 {
		return fmt.Errorf("height field is empty")
	}
	return nil
}
