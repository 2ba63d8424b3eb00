// Package generator turns one Params value into a set of albedo, normal and
// roughness maps. It owns validation, stage progress and the error taxonomy.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/surfacegen/internal/fbm"
	"github.com/MeKo-Tech/surfacegen/internal/material"
	"github.com/MeKo-Tech/surfacegen/internal/noise"
	"github.com/MeKo-Tech/surfacegen/internal/normal"
	"github.com/MeKo-Tech/surfacegen/internal/resample"
)

// BytesPerPixel approximates the peak working set of one generation per
// output pixel: the float height field, the octave layer, the composited
// maps, the normal source and the normal map.
const BytesPerPixel = 24

// State is the lifecycle of a Generator.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Options configures a Generator.
type Options struct {
	// Resampler defaults to resample.Gift.
	Resampler resample.Resampler
	Logger    *slog.Logger
	// MemoryBudget caps EstimateBytes for a request; 0 means unlimited.
	MemoryBudget uint64
}

// Generator runs one generation at a time.
type Generator struct {
	resampler resample.Resampler
	logger    *slog.Logger
	budget    uint64
	state     atomic.Int32
}

// New returns an idle Generator.
func New(opts Options) *Generator {
	r := opts.Resampler
	if r == nil {
		r = resample.Gift{}
	}
	return &Generator{
		resampler: r,
		logger:    opts.Logger,
		budget:    opts.MemoryBudget,
	}
}

// State reports the current lifecycle state.
func (g *Generator) State() State { return State(g.state.Load()) }

// EstimateBytes returns the approximate peak memory of a generation at the
// given resolution.
func EstimateBytes(resolution int) uint64 {
	if resolution <= 0 {
		return 0
	}
	n := uint64(resolution)
	return n * n * BytesPerPixel
}

// Generate synthesizes the height field, composites the material and derives
// the normal map. onProgress may be nil. A call made while another one is
// running fails immediately with ErrBusy and leaves the state untouched.
func (g *Generator) Generate(ctx context.Context, p Params, onProgress ProgressFunc) (maps *Maps, err error) {
	if !g.acquire() {
		return nil, &Error{Kind: KindBusy, Op: "generate"}
	}

	defer func() {
		if r := recover(); r != nil {
			rerr, ok := panicError(r)
			if !ok {
				g.state.Store(int32(StateFailed))
				panic(r)
			}
			maps, err = nil, rerr
		}
		if err != nil {
			g.state.Store(int32(StateFailed))
			g.log().Error("Generation failed", "material", p.Material.String(), "resolution", p.Resolution, "error", err)
			return
		}
		g.state.Store(int32(StateDone))
	}()

	return g.run(ctx, p, onProgress)
}

func (g *Generator) acquire() bool {
	for {
		cur := g.state.Load()
		if State(cur) == StateRunning {
			return false
		}
		if g.state.CompareAndSwap(cur, int32(StateRunning)) {
			return true
		}
	}
}

func (g *Generator) run(ctx context.Context, p Params, onProgress ProgressFunc) (*Maps, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if need := EstimateBytes(p.Resolution); g.budget > 0 && need > g.budget {
		return nil, &Error{
			Kind:   KindAllocation,
			Op:     "preflight",
			Detail: fmt.Sprintf("resolution %d needs about %d MiB, budget is %d MiB", p.Resolution, need>>20, g.budget>>20),
		}
	}

	emit := func(e Event) {
		if onProgress != nil {
			onProgress(e)
		}
	}

	start := time.Now()
	src := noise.NewSource(p.Seed)
	scale := AdjustedScale(p.NoiseScale, p.Resolution)
	g.log().Info("Generating surface set",
		"material", p.Material.String(),
		"resolution", p.Resolution,
		"seed", src.Seed(),
		"scale", scale,
		"octaves", p.Octaves,
		"basis", p.Basis.String(),
		"resampler", g.resampler.Name())

	height, err := fbm.Synthesize(ctx, fbm.Config{
		Source:    src,
		Resampler: g.resampler,
		OnOctave:  func(i, n int) { emit(octaveEvent(i, n)) },
		Size:      p.Resolution,
		BaseScale: scale,
		Octaves:   p.Octaves,
		Basis:     p.Basis,
	})
	if err != nil {
		return nil, classify("height field", err)
	}
	heightStats := height.Stats()
	g.log().Debug("Height field ready", "mean", heightStats.Mean, "variance", heightStats.Variance)

	if err := ctx.Err(); err != nil {
		return nil, classify("composite", err)
	}
	emit(compositeStartEvent)
	comp, err := material.For(p.Material)
	if err != nil {
		return nil, classify("composite", err)
	}
	out, err := comp.Composite(ctx, material.Input{
		Height:         height,
		Source:         src,
		Resampler:      g.resampler,
		Density:        p.Density,
		ColorVariation: p.ColorVariation,
	})
	if err != nil {
		return nil, classify("composite", err)
	}
	emit(compositeEndEvent)

	if err := ctx.Err(); err != nil {
		return nil, classify("normal map", err)
	}
	emit(normalEvent)
	nrm, err := normal.Derive(out.NormalSource, p.NormalStrength)
	if err != nil {
		return nil, classify("normal map", err)
	}

	maps := &Maps{
		Albedo:    out.Albedo,
		Normal:    nrm,
		Roughness: out.Roughness,
		Params:    p,
		Seed:      src.Seed(),
		Stats: Stats{
			HeightMean:     heightStats.Mean,
			HeightVariance: heightStats.Variance,
			PebbleCoverage: out.PebbleCoverage,
			NormalMinZ:     normal.Measure(nrm).MinZ,
		},
		Elapsed: time.Since(start),
	}
	emit(doneEvent)
	g.log().Info("Generation complete",
		"material", p.Material.String(),
		"resolution", p.Resolution,
		"seed", maps.Seed,
		"elapsed", maps.Elapsed.Round(time.Millisecond))
	return maps, nil
}

func (g *Generator) log() *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return slog.Default()
}

// classify maps a stage failure onto the generator error taxonomy.
// Failures without a more specific class are reported as numeric.
func classify(op string, err error) error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	kind := KindNumeric
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindCanceled
	case errors.Is(err, fbm.ErrInvalidConfig):
		kind = KindInvalidParameter
	case errors.Is(err, normal.ErrNonFinite):
		kind = KindNumeric
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// panicError converts a recovered runtime error into a generator error.
// Allocation failures map to KindAllocation, anything else to KindNumeric.
// Values that are not runtime errors are left to the caller.
func panicError(r any) (error, bool) {
	re, ok := r.(runtime.Error)
	if !ok {
		return nil, false
	}
	msg := re.Error()
	if strings.Contains(msg, "makeslice") || strings.Contains(msg, "out of memory") {
		return &Error{Kind: KindAllocation, Op: "generate", Err: re}, true
	}
	return &Error{Kind: KindNumeric, Op: "generate", Detail: "recovered runtime panic", Err: re}, true
}
