package generator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/surfacegen/internal/material"
	"github.com/MeKo-Tech/surfacegen/internal/noise"
)

func ptr[T any](v T) *T { return &v }

func withSeed(p Params, seed int64) Params {
	p.Seed = &seed
	return p
}

func TestAdjustedScale(t *testing.T) {
	assert.InDelta(t, 30.0, AdjustedScale(60, 1024), 1e-9)
	assert.InDelta(t, 60.0, AdjustedScale(60, 2048), 1e-9)
	assert.InDelta(t, 120.0, AdjustedScale(60, 4096), 1e-9)
	assert.InDelta(t, 2*AdjustedScale(60, 2048), AdjustedScale(60, 4096), 1e-9)
	assert.InDelta(t, MinAdjustedScale, AdjustedScale(20, 1024), 1e-9)
	assert.InDelta(t, MinAdjustedScale, AdjustedScale(20, 512), 1e-9)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"resolution not in set", func(p *Params) { p.Resolution = 1000 }},
		{"resolution too small", func(p *Params) { p.Resolution = 512 }},
		{"scale too low", func(p *Params) { p.NoiseScale = 19.9 }},
		{"scale too high", func(p *Params) { p.NoiseScale = 201 }},
		{"scale NaN", func(p *Params) { p.NoiseScale = math.NaN() }},
		{"zero octaves", func(p *Params) { p.Octaves = 0 }},
		{"seven octaves", func(p *Params) { p.Octaves = 7 }},
		{"density too low", func(p *Params) { p.Density = 0.05 }},
		{"color variation above one", func(p *Params) { p.ColorVariation = 1.5 }},
		{"normal strength zero", func(p *Params) { p.NormalStrength = 0 }},
		{"unknown material", func(p *Params) { p.Material = material.Kind(9) }},
		{"unknown basis", func(p *Params) { p.Basis = noise.Basis(9) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidParameter)
			assert.Equal(t, KindInvalidParameter, KindOf(err))
		})
	}
}

func TestGenerateGrass(t *testing.T) {
	g := New(Options{})
	assert.Equal(t, StateIdle, g.State())

	var events []Event
	p := withSeed(DefaultParams(), 42)
	maps, err := g.Generate(context.Background(), p, func(e Event) { events = append(events, e) })
	require.NoError(t, err)
	assert.Equal(t, StateDone, g.State())

	require.Len(t, events, 3+4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, StageOctave, events[i].Stage)
		assert.Equal(t, i+1, events[i].Octave)
		assert.Equal(t, 3, events[i].Octaves)
	}
	assert.Equal(t, "Generating Octave 1/3...", events[0].Label)
	assert.Equal(t, StageCompositeStart, events[3].Stage)
	assert.Equal(t, StageCompositeEnd, events[4].Stage)
	assert.Equal(t, StageNormal, events[5].Stage)
	assert.Equal(t, "Calculating Normal Map...", events[5].Label)
	assert.Equal(t, StageDone, events[6].Stage)

	for _, k := range MapKinds() {
		b := maps.Image(k).Bounds()
		assert.Equal(t, 1024, b.Dx(), "%s width", k)
		assert.Equal(t, 1024, b.Dy(), "%s height", k)
	}
	assert.Equal(t, 1024, maps.Size())
	assert.Equal(t, int64(42), maps.Seed)
	assert.Equal(t, p, maps.Params)
	assert.Zero(t, maps.Stats.PebbleCoverage)
	assert.Greater(t, maps.Stats.NormalMinZ, 0.0)

	for _, v := range maps.Roughness.Pix {
		require.GreaterOrEqual(t, v, uint8(76))
		require.LessOrEqual(t, v, uint8(229))
	}
	for i := 3; i < len(maps.Albedo.Pix); i += 4 {
		require.Equal(t, uint8(255), maps.Albedo.Pix[i])
		require.Equal(t, uint8(255), maps.Normal.Pix[i])
		require.Positive(t, maps.Normal.Pix[i-1], "normal blue channel")
	}
}

func TestGenerateDirtCoverage(t *testing.T) {
	p := withSeed(DefaultParams(), 7)
	p.Material = material.Dirt
	p.Density = 1.0

	maps, err := New(Options{}).Generate(context.Background(), p, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, maps.Stats.PebbleCoverage, 0.05)
	assert.Equal(t, 1024, maps.Size())
}

func TestGenerateIsReproducible(t *testing.T) {
	p := withSeed(DefaultParams(), 99)
	p.Material = material.Dirt

	a, err := New(Options{}).Generate(context.Background(), p, nil)
	require.NoError(t, err)
	b, err := New(Options{}).Generate(context.Background(), p, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Albedo.Pix, b.Albedo.Pix)
	assert.Equal(t, a.Normal.Pix, b.Normal.Pix)
	assert.Equal(t, a.Roughness.Pix, b.Roughness.Pix)
}

type runStats struct {
	heightMean, heightVar float64
	roughMean, roughVar   float64
	albedoGreen           float64
}

func measureRun(m *Maps) runStats {
	rs := runStats{heightMean: m.Stats.HeightMean, heightVar: m.Stats.HeightVariance}

	var sum, sumSq float64
	for _, v := range m.Roughness.Pix {
		f := float64(v)
		sum += f
		sumSq += f * f
	}
	n := float64(len(m.Roughness.Pix))
	rs.roughMean = sum / n
	rs.roughVar = sumSq/n - rs.roughMean*rs.roughMean

	var green float64
	for i := 1; i < len(m.Albedo.Pix); i += 4 {
		green += float64(m.Albedo.Pix[i])
	}
	rs.albedoGreen = green / n
	return rs
}

func TestGenerateStatisticsAreStable(t *testing.T) {
	if testing.Short() {
		t.Skip("generates several full size sets")
	}
	g := New(Options{})

	var runs []runStats
	for _, seed := range []*int64{nil, nil, ptr(int64(1)), ptr(int64(2))} {
		p := DefaultParams()
		p.Seed = seed
		maps, err := g.Generate(context.Background(), p, nil)
		require.NoError(t, err)
		rs := measureRun(maps)
		require.Greater(t, rs.heightVar, 0.0)
		require.Greater(t, rs.roughVar, 0.0)
		runs = append(runs, rs)
	}

	ref := runs[0]
	assert.InDelta(t, 0.5, ref.heightMean, 0.1)
	for i, rs := range runs[1:] {
		assert.InDelta(t, ref.heightMean, rs.heightMean, 0.05, "run %d height mean", i+1)
		assert.InEpsilon(t, ref.heightVar, rs.heightVar, 0.3, "run %d height variance", i+1)
		assert.InDelta(t, ref.roughMean, rs.roughMean, 8, "run %d roughness mean", i+1)
		assert.InEpsilon(t, ref.roughVar, rs.roughVar, 0.3, "run %d roughness variance", i+1)
		assert.InDelta(t, ref.albedoGreen, rs.albedoGreen, 10, "run %d albedo green mean", i+1)
	}
}

func TestGenerateRejectsInvalidParams(t *testing.T) {
	g := New(Options{})
	p := DefaultParams()
	p.Octaves = 0

	called := false
	_, err := g.Generate(context.Background(), p, func(Event) { called = true })
	require.ErrorIs(t, err, ErrInvalidParameter)
	assert.False(t, called, "no progress before validation")
	assert.Equal(t, StateFailed, g.State())

	_, err = g.Generate(context.Background(), withSeed(DefaultParams(), 1), nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, g.State())
}

func TestGenerateBusy(t *testing.T) {
	g := New(Options{})
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		first := true
		_, err := g.Generate(context.Background(), withSeed(DefaultParams(), 3), func(Event) {
			if first {
				first = false
				close(started)
				<-release
			}
		})
		done <- err
	}()

	<-started
	assert.Equal(t, StateRunning, g.State())
	_, err := g.Generate(context.Background(), DefaultParams(), nil)
	require.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, StateRunning, g.State())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateDone, g.State())
}

func TestGenerateCanceled(t *testing.T) {
	g := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stages []Stage
	_, err := g.Generate(ctx, withSeed(DefaultParams(), 5), func(e Event) {
		stages = append(stages, e.Stage)
		if e.Stage == StageOctave && e.Octave == 2 {
			cancel()
		}
	})
	require.ErrorIs(t, err, ErrCanceled)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StateFailed, g.State())
	assert.Equal(t, []Stage{StageOctave, StageOctave}, stages)
}

func TestGenerateMemoryBudget(t *testing.T) {
	g := New(Options{MemoryBudget: EstimateBytes(2048)})

	p := withSeed(DefaultParams(), 1)
	p.Resolution = 4096
	_, err := g.Generate(context.Background(), p, nil)
	require.ErrorIs(t, err, ErrAllocation)
	assert.Equal(t, StateFailed, g.State())

	assert.Equal(t, uint64(1024*1024*BytesPerPixel), EstimateBytes(1024))
	assert.Zero(t, EstimateBytes(0))
}

func TestErrorFormatting(t *testing.T) {
	err := classify("normal map", errors.New("boom"))
	assert.Equal(t, KindNumeric, KindOf(err))
	assert.EqualError(t, err, "numeric error in normal map: boom")

	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.False(t, errors.Is(err, ErrBusy))
	assert.Zero(t, KindOf(errors.New("plain")))
}

func TestPanicError(t *testing.T) {
	recovered := func(fn func()) (err error, ok bool) {
		defer func() {
			err, ok = panicError(recover())
		}()
		fn()
		return nil, false
	}

	err, ok := recovered(func() {
		n := -1
		_ = make([]float32, n)
	})
	require.True(t, ok)
	require.ErrorIs(t, err, ErrAllocation)

	err, ok = recovered(func() {
		var s []int
		i := 3
		_ = s[i]
	})
	require.True(t, ok)
	require.ErrorIs(t, err, ErrNumeric)
	assert.Contains(t, err.Error(), "recovered runtime panic")

	_, ok = panicError("not a runtime error")
	assert.False(t, ok)
}

func TestGenerateRecoversRuntimePanic(t *testing.T) {
	g := New(Options{})
	p := withSeed(DefaultParams(), 4)
	p.Octaves = 1

	_, err := g.Generate(context.Background(), p, func(e Event) {
		if e.Stage == StageCompositeStart {
			var s []int
			_ = s[e.Octave+1]
		}
	})
	require.ErrorIs(t, err, ErrNumeric)
	assert.Equal(t, StateFailed, g.State())

	_, err = g.Generate(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, g.State())
}

func TestParseMapKind(t *testing.T) {
	k, err := ParseMapKind("Normal")
	require.NoError(t, err)
	assert.Equal(t, MapNormal, k)
	assert.Equal(t, "Roughness", MapRoughness.Suffix())
	_, err = ParseMapKind("height")
	require.Error(t, err)
}
