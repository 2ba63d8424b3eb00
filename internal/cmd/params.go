package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/surfacegen/internal/generator"
	"github.com/MeKo-Tech/surfacegen/internal/material"
	"github.com/MeKo-Tech/surfacegen/internal/noise"
	"github.com/MeKo-Tech/surfacegen/internal/resample"
)

// addParamFlags registers the generation parameters shared by generate and
// batch and binds them under section.
func addParamFlags(cmd *cobra.Command, section string) {
	d := generator.DefaultParams()

	cmd.Flags().Float64("scale", d.NoiseScale, "Noise scale, the base feature size (20-200)")
	cmd.Flags().Int("octaves", d.Octaves, "Number of noise octaves (1-6)")
	cmd.Flags().Float64("density", d.Density, "Pebble density for dirt (0.1-1.0)")
	cmd.Flags().Float64("color-variation", d.ColorVariation, "Share of green vs. dry grass (0-1)")
	cmd.Flags().Float64("normal-strength", d.NormalStrength, "Normal map intensity (1-20)")
	cmd.Flags().String("seed", "", "Seed for reproducible output (empty = random)")
	cmd.Flags().String("basis", d.Basis.String(), "Octave noise basis (value, perlin)")
	cmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")
	cmd.Flags().String("archive", "", "SQLite archive to store generated sets in")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{section + ".scale", "scale"},
		{section + ".octaves", "octaves"},
		{section + ".density", "density"},
		{section + ".color_variation", "color-variation"},
		{section + ".normal_strength", "normal-strength"},
		{section + ".seed", "seed"},
		{section + ".basis", "basis"},
		{section + ".png_compression", "png-compression"},
		{section + ".archive", "archive"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, cmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// paramsFromConfig reads the shared parameters of section. Material and
// resolution are left at their defaults.
func paramsFromConfig(section string) (generator.Params, error) {
	p := generator.DefaultParams()
	p.NoiseScale = viper.GetFloat64(section + ".scale")
	p.Octaves = viper.GetInt(section + ".octaves")
	p.Density = viper.GetFloat64(section + ".density")
	p.ColorVariation = viper.GetFloat64(section + ".color_variation")
	p.NormalStrength = viper.GetFloat64(section + ".normal_strength")

	seed, err := parseSeed(viper.GetString(section + ".seed"))
	if err != nil {
		return p, err
	}
	p.Seed = seed

	basis, err := noise.ParseBasis(viper.GetString(section + ".basis"))
	if err != nil {
		return p, err
	}
	p.Basis = basis
	return p, nil
}

func newGeneratorOptions() (generator.Options, error) {
	r, err := resample.New(viper.GetString("resampler"))
	if err != nil {
		return generator.Options{}, err
	}
	return generator.Options{
		Resampler:    r,
		Logger:       logger,
		MemoryBudget: viper.GetUint64("memory-budget-mb") << 20,
	}, nil
}

func parseSeed(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid seed %q: %w", s, err)
	}
	return &v, nil
}

// parseMaterials parses a comma separated material list such as "grass,dirt".
func parseMaterials(s string) ([]material.Kind, error) {
	var out []material.Kind
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := material.ParseKind(part)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no materials given")
	}
	return out, nil
}

// parseResolutions parses a comma separated list such as "1024,2048".
func parseResolutions(s string) ([]int, error) {
	var out []int
	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid resolution at position %d: %w", i, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no resolutions given")
	}
	return out, nil
}
