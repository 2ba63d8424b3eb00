// Package resample turns blocky low resolution noise into smooth full size
// layers and softens layers with a Gaussian kernel.
//
// All operations use clamp-to-edge sampling; outputs are not tileable.
package resample

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/gift"
	"golang.org/x/image/draw"
)

// Names accepted by New.
const (
	NameCubic      = "cubic"
	NameCatmullRom = "catmull-rom"
)

// Resampler resizes and blurs 8-bit single channel images.
type Resampler interface {
	// Name identifies the kernel, e.g. for logs.
	Name() string
	// Resize scales src to w×h with a smooth bicubic-class kernel.
	Resize(src *image.Gray, w, h int) *image.Gray
	// Upsample scales a square grid to n×n.
	Upsample(src *image.Gray, n int) *image.Gray
	// Blur applies a separable Gaussian with standard deviation radius.
	Blur(src *image.Gray, radius float64) *image.Gray
}

// New returns the resampler registered under name. An empty name selects cubic.
func New(name string) (Resampler, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameCubic:
		return Gift{}, nil
	case NameCatmullRom, "catmullrom":
		return CatmullRom{}, nil
	default:
		return nil, fmt.Errorf("unknown resampler %q (want %s or %s)", name, NameCubic, NameCatmullRom)
	}
}

// Gift resamples with gift's cubic filter and blurs with gift's Gaussian.
type Gift struct{}

func (Gift) Name() string { return NameCubic }

func (Gift) Resize(src *image.Gray, w, h int) *image.Gray {
	return apply(src, gift.Resize(w, h, gift.CubicResampling))
}

func (r Gift) Upsample(src *image.Gray, n int) *image.Gray { return r.Resize(src, n, n) }

func (Gift) Blur(src *image.Gray, radius float64) *image.Gray { return blur(src, radius) }

// CatmullRom resamples with the Catmull-Rom spline from x/image/draw.
// Blurring is shared with Gift.
type CatmullRom struct{}

func (CatmullRom) Name() string { return NameCatmullRom }

func (CatmullRom) Resize(src *image.Gray, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func (r CatmullRom) Upsample(src *image.Gray, n int) *image.Gray { return r.Resize(src, n, n) }

func (CatmullRom) Blur(src *image.Gray, radius float64) *image.Gray { return blur(src, radius) }

func blur(src *image.Gray, radius float64) *image.Gray {
	if radius <= 0 {
		return src
	}
	return apply(src, gift.GaussianBlur(float32(radius)))
}

func apply(src *image.Gray, filters ...gift.Filter) *image.Gray {
	g := gift.New(filters...)
	dst := image.NewGray(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}
