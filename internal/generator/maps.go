package generator

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// MapKind names one of the three output maps.
type MapKind string

const (
	MapAlbedo    MapKind = "albedo"
	MapNormal    MapKind = "normal"
	MapRoughness MapKind = "roughness"
)

// MapKinds lists the output maps in export order.
func MapKinds() []MapKind { return []MapKind{MapAlbedo, MapNormal, MapRoughness} }

// ParseMapKind accepts a map name in any case.
func ParseMapKind(s string) (MapKind, error) {
	k := MapKind(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range MapKinds() {
		if k == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown map %q (want albedo, normal or roughness)", s)
}

// Suffix is the file name suffix used on export, e.g. "Albedo".
func (k MapKind) Suffix() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Stats summarizes a finished generation.
type Stats struct {
	HeightMean     float64 `json:"height_mean"`
	HeightVariance float64 `json:"height_variance"`
	// PebbleCoverage is the fraction of pebble pixels; always 0 for grass.
	PebbleCoverage float64 `json:"pebble_coverage"`
	NormalMinZ     float64 `json:"normal_min_z"`
}

// Maps is the result of one generation. The caller owns every image.
type Maps struct {
	Albedo    *image.NRGBA
	Normal    *image.NRGBA
	Roughness *image.Gray
	Params    Params
	Seed      int64
	Stats     Stats
	Elapsed   time.Duration
}

// Image returns the map of the given kind, or nil for an unknown kind.
func (m *Maps) Image(k MapKind) image.Image {
	switch k {
	case MapAlbedo:
		return m.Albedo
	case MapNormal:
		return m.Normal
	case MapRoughness:
		return m.Roughness
	default:
		return nil
	}
}

// Size returns the edge length of the maps.
func (m *Maps) Size() int {
	if m.Albedo == nil {
		return 0
	}
	return m.Albedo.Bounds().Dx()
}
