package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/surfacegen/internal/generator"
)

func testMaps(n int) *generator.Maps {
	albedo := image.NewNRGBA(image.Rect(0, 0, n, n))
	nrm := image.NewNRGBA(image.Rect(0, 0, n, n))
	rough := image.NewGray(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			albedo.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: 120, B: uint8(y * 4), A: 255})
			nrm.SetNRGBA(x, y, color.NRGBA{R: 127, G: 127, B: 255, A: 255})
			rough.SetGray(x, y, color.Gray{Y: uint8(x + y)})
		}
	}
	return &generator.Maps{Albedo: albedo, Normal: nrm, Roughness: rough}
}

func decode(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "out/grass", BaseName("out/grass.png"))
	assert.Equal(t, "out/grass", BaseName("out/grass.PNG"))
	assert.Equal(t, "out/grass", BaseName("out/grass"))
	assert.Equal(t, "out/grass.tar", BaseName("out/grass.tar"))
	assert.Equal(t, "out/dirt_Normal.png", PathFor("out/dirt.png", generator.MapNormal))
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]png.CompressionLevel{
		"":        png.DefaultCompression,
		"default": png.DefaultCompression,
		"Speed":   png.BestSpeed,
		"best":    png.BestCompression,
		"none":    png.NoCompression,
	} {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCompression("max")
	require.Error(t, err)
}

func TestWriteSet(t *testing.T) {
	dir := t.TempDir()
	maps := testMaps(32)

	paths, err := WriteSet(filepath.Join(dir, "nested", "grass.png"), maps, Options{Compression: "best", Preview: 8})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "nested", "grass_Albedo.png"), paths.Albedo)
	assert.Equal(t, filepath.Join(dir, "nested", "grass_Normal.png"), paths.Normal)
	assert.Equal(t, filepath.Join(dir, "nested", "grass_Roughness.png"), paths.Roughness)
	assert.Equal(t, filepath.Join(dir, "nested", "grass_Preview.png"), paths.Preview)

	albedo := decode(t, paths.Albedo)
	assert.Equal(t, 32, albedo.Bounds().Dx())
	r, g, b, a := albedo.At(5, 7).RGBA()
	assert.Equal(t, uint32(20), r>>8)
	assert.Equal(t, uint32(120), g>>8)
	assert.Equal(t, uint32(28), b>>8)
	assert.Equal(t, uint32(255), a>>8)

	rough := decode(t, paths.Roughness)
	gray, ok := rough.(*image.Gray)
	require.True(t, ok, "roughness decodes as grayscale, got %T", rough)
	assert.Equal(t, uint8(12), gray.GrayAt(5, 7).Y)

	nrm := decode(t, paths.Normal)
	r, g, b, _ = nrm.At(0, 0).RGBA()
	assert.Equal(t, []uint32{127, 127, 255}, []uint32{r >> 8, g >> 8, b >> 8})

	preview := decode(t, paths.Preview)
	assert.Equal(t, image.Rect(0, 0, 8, 8), preview.Bounds())
}

func TestWriteSetWithoutPreview(t *testing.T) {
	base := filepath.Join(t.TempDir(), "dirt")
	paths, err := WriteSet(base, testMaps(4), Options{})
	require.NoError(t, err)
	assert.Empty(t, paths.Preview)
	_, err = os.Stat(base + "_Preview.png")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteSetErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteSet(filepath.Join(dir, "x"), nil, Options{})
	require.Error(t, err)
	_, err = WriteSet(filepath.Join(dir, "x"), testMaps(4), Options{Compression: "huge"})
	require.Error(t, err)
	_, err = WriteSet(filepath.Join(dir, "x"), testMaps(4), Options{Preview: -1})
	require.Error(t, err)
	_, err = WriteSet(".png", testMaps(4), Options{})
	require.Error(t, err)
}

func TestEncodeSet(t *testing.T) {
	encoded, err := EncodeSet(testMaps(16), "speed")
	require.NoError(t, err)
	require.Len(t, encoded, 3)

	for kind, b := range encoded {
		img, err := png.Decode(bytes.NewReader(b))
		require.NoError(t, err, kind)
		assert.Equal(t, 16, img.Bounds().Dx(), kind)
	}
}
