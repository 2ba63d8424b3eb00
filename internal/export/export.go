// Package export writes generated map sets as lossless PNG files.
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/MeKo-Tech/surfacegen/internal/generator"
)

// Compression names accepted by ParseCompression.
const (
	CompressionDefault = "default"
	CompressionSpeed   = "speed"
	CompressionBest    = "best"
	CompressionNone    = "none"
)

// Options controls how a set is written.
type Options struct {
	// Compression is one of default, speed, best or none.
	Compression string
	// Preview is the edge length of an extra downscaled albedo; 0 disables it.
	Preview int
}

// Paths lists the files written by WriteSet. Preview is empty when disabled.
type Paths struct {
	Albedo    string `json:"albedo"`
	Normal    string `json:"normal"`
	Roughness string `json:"roughness"`
	Preview   string `json:"preview,omitempty"`
}

// ParseCompression maps a compression name to a png level.
func ParseCompression(s string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", CompressionDefault:
		return png.DefaultCompression, nil
	case CompressionSpeed:
		return png.BestSpeed, nil
	case CompressionBest:
		return png.BestCompression, nil
	case CompressionNone:
		return png.NoCompression, nil
	default:
		return png.DefaultCompression, fmt.Errorf("invalid png compression %q: must be default, speed, best or none", s)
	}
}

// BaseName strips a trailing ".png" so "out/grass.png" and "out/grass"
// both produce out/grass_Albedo.png and friends.
func BaseName(base string) string {
	if strings.EqualFold(filepath.Ext(base), ".png") {
		return base[:len(base)-len(".png")]
	}
	return base
}

// PathFor returns the file name of one map of the set rooted at base.
func PathFor(base string, kind generator.MapKind) string {
	return BaseName(base) + "_" + kind.Suffix() + ".png"
}

// WriteSet writes <base>_Albedo.png, <base>_Normal.png and
// <base>_Roughness.png, creating the parent directory when needed.
func WriteSet(base string, maps *generator.Maps, opts Options) (Paths, error) {
	if maps == nil {
		return Paths{}, fmt.Errorf("no maps to export")
	}
	if strings.TrimSpace(BaseName(base)) == "" {
		return Paths{}, fmt.Errorf("empty output base name")
	}
	level, err := ParseCompression(opts.Compression)
	if err != nil {
		return Paths{}, err
	}
	if opts.Preview < 0 {
		return Paths{}, fmt.Errorf("preview size must not be negative, got %d", opts.Preview)
	}

	if dir := filepath.Dir(BaseName(base)); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Paths{}, fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	var paths Paths
	for _, kind := range generator.MapKinds() {
		path := PathFor(base, kind)
		if err := writePNG(path, maps.Image(kind), level); err != nil {
			return Paths{}, err
		}
		switch kind {
		case generator.MapAlbedo:
			paths.Albedo = path
		case generator.MapNormal:
			paths.Normal = path
		case generator.MapRoughness:
			paths.Roughness = path
		}
	}

	if opts.Preview > 0 {
		path := BaseName(base) + "_Preview.png"
		if err := writePNG(path, Preview(maps.Albedo, opts.Preview), level); err != nil {
			return Paths{}, err
		}
		paths.Preview = path
	}
	return paths, nil
}

// EncodePNG encodes img in memory.
func EncodePNG(img image.Image, compression string) ([]byte, error) {
	level, err := ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeSet encodes all three maps in memory, keyed by kind.
func EncodeSet(maps *generator.Maps, compression string) (map[generator.MapKind][]byte, error) {
	if maps == nil {
		return nil, fmt.Errorf("no maps to encode")
	}
	out := make(map[generator.MapKind][]byte, 3)
	for _, kind := range generator.MapKinds() {
		b, err := EncodePNG(maps.Image(kind), compression)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		out[kind] = b
	}
	return out, nil
}

// Preview scales img down to size×size with a Catmull-Rom kernel.
func Preview(img image.Image, size int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func writePNG(path string, img image.Image, level png.CompressionLevel) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return file.Close()
}
