package normal

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/surfacegen/internal/field"
	"github.com/MeKo-Tech/surfacegen/internal/noise"
)

func rampX(t *testing.T, n int, slope float32) *field.Grid {
	t.Helper()
	g, err := field.New(n)
	require.NoError(t, err)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			g.Set(x, y, float32(x)*slope)
		}
	}
	return g
}

func TestFlatFieldPointsStraightUp(t *testing.T) {
	g, err := field.New(8)
	require.NoError(t, err)

	img, err := Derive(g, 20)
	require.NoError(t, err)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			assert.Equal(t, color.NRGBA{R: 127, G: 127, B: 255, A: 255}, img.NRGBAAt(x, y))
		}
	}
}

func TestGradientMatchesCentralDifferences(t *testing.T) {
	g, err := field.New(4)
	require.NoError(t, err)
	vals := []float32{0, 1, 4, 9}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			g.Set(x, y, vals[x])
		}
	}

	cases := []struct {
		x    int
		want float64
	}{
		{0, 1}, // forward at left edge
		{1, 2}, // (4-0)/2
		{2, 4}, // (9-1)/2
		{3, 5}, // backward at right edge
	}
	for _, c := range cases {
		gx, gy := Gradient(g, c.x, 1)
		assert.InDelta(t, c.want, gx, 1e-6, "x=%d", c.x)
		assert.InDelta(t, 0, gy, 1e-6)
	}
}

func TestRampTiltsTowardPositiveX(t *testing.T) {
	img, err := Derive(rampX(t, 8, 0.1), 5)
	require.NoError(t, err)

	// gx = 0.5 → norm = sqrt(1.25)
	norm := math.Sqrt(1.25)
	want := color.NRGBA{
		R: uint8((0.5/norm + 1) / 2 * 255),
		G: 127,
		B: uint8(255 / norm),
		A: 255,
	}
	assert.Equal(t, want, img.NRGBAAt(3, 3))
}

func TestDecodedNormalsAreUnitLength(t *testing.T) {
	seed := int64(5)
	g, err := noise.NewSource(&seed).Float(64)
	require.NoError(t, err)

	for _, intensity := range []float64{1, 5, 20} {
		img, err := Derive(g, intensity)
		require.NoError(t, err)

		s := Measure(img)
		assert.Greater(t, s.MinZ, 0.0, "nz must stay positive")
		assert.Less(t, s.MaxLengthErr, 0.03, "intensity %v", intensity)
	}
}

func TestEncodeExtremeGradientKeepsZPositive(t *testing.T) {
	c := Encode(1e6, -1e6)
	assert.Equal(t, uint8(0), c.B)
	v := Decode(c)
	assert.GreaterOrEqual(t, v.Z(), 0.0)

	c = Encode(100, 0)
	assert.Greater(t, c.B, uint8(0))
}

func TestDeriveRejectsNonFinite(t *testing.T) {
	g := rampX(t, 4, 1)
	g.Set(2, 2, float32(math.NaN()))

	_, err := Derive(g, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonFinite))

	_, err = Derive(rampX(t, 4, 1), math.Inf(1))
	assert.True(t, errors.Is(err, ErrNonFinite))
}

func TestDeriveSinglePixel(t *testing.T) {
	g, err := field.New(1)
	require.NoError(t, err)
	img, err := Derive(g, 10)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), img.NRGBAAt(0, 0).B)
}
