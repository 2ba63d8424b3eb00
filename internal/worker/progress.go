package worker

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/surfacegen/internal/generator"
)

const barWidth = 24

// Progress renders a single status line for a batch: finished sets, pixel
// throughput and the current stage of every set in flight.
type Progress struct {
	start         time.Time
	out           io.Writer
	active        map[string]string
	pendingPixels uint64
	donePixels    uint64
	total         int
	completed     int
	failed        int
	mu            sync.Mutex
	enabled       bool
}

// NewProgress creates a display for tasks. When enabled is false it only
// collects numbers for Summary.
func NewProgress(tasks []Task, enabled bool) *Progress {
	p := &Progress{
		start:   time.Now(),
		out:     os.Stderr,
		active:  make(map[string]string),
		total:   len(tasks),
		enabled: enabled,
	}
	for _, t := range tasks {
		p.pendingPixels += taskPixels(t)
	}
	return p
}

func taskPixels(t Task) uint64 {
	n := uint64(max(t.Params.Resolution, 0))
	return n * n
}

// Observe records a stage event of a running set. It matches Config.OnStage.
func (p *Progress) Observe(task Task, e generator.Event) {
	p.mu.Lock()
	if e.Stage == generator.StageDone {
		delete(p.active, task.Name)
		p.donePixels += taskPixels(task)
	} else {
		p.active[task.Name] = stageText(e)
	}
	p.mu.Unlock()

	p.redraw()
}

// Complete records a finished set. It matches Config.OnProgress.
func (p *Progress) Complete(r Result, completed, total, failed int) {
	p.mu.Lock()
	delete(p.active, r.Task.Name)
	px := taskPixels(r.Task)
	p.pendingPixels -= min(px, p.pendingPixels)
	p.completed = completed
	p.total = total
	p.failed = failed
	p.mu.Unlock()

	p.redraw()
}

func stageText(e generator.Event) string {
	switch e.Stage {
	case generator.StageOctave:
		return fmt.Sprintf("octave %d/%d", e.Octave, e.Octaves)
	case generator.StageCompositeStart:
		return "compositing"
	case generator.StageCompositeEnd:
		return "composited"
	case generator.StageNormal:
		return "normal map"
	default:
		return e.Label
	}
}

func (p *Progress) redraw() {
	if !p.enabled {
		return
	}
	fmt.Fprint(p.out, "\r"+p.line()+"\x1b[K")
}

// rate returns generated megapixels per second.
func (p *Progress) rate(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(p.donePixels) / 1e6 / elapsed.Seconds()
}

func (p *Progress) line() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.start)
	filled := 0
	if p.total > 0 {
		filled = p.completed * barWidth / p.total
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s%s] %d/%d sets", strings.Repeat("=", filled), strings.Repeat(" ", barWidth-filled), p.completed, p.total)
	if p.failed > 0 {
		fmt.Fprintf(&b, ", %d failed", p.failed)
	}
	rate := p.rate(elapsed)
	fmt.Fprintf(&b, ", %.1f Mpx/s", rate)

	if p.completed >= p.total {
		fmt.Fprintf(&b, ", done in %s", elapsed.Round(time.Second))
		return b.String()
	}
	if rate > 0 && p.pendingPixels > 0 {
		eta := time.Duration(float64(p.pendingPixels) / 1e6 / rate * float64(time.Second))
		fmt.Fprintf(&b, ", ETA %s", eta.Round(time.Second))
	}

	names := make([]string, 0, len(p.active))
	for name := range p.active {
		names = append(names, name)
	}
	slices.Sort(names)
	for i, name := range names {
		sep := ", "
		if i == 0 {
			sep = " | "
		}
		b.WriteString(sep + name + ": " + p.active[name])
	}
	return b.String()
}

// Done prints the final line followed by a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.redraw()
		fmt.Fprintln(p.out)
	}
}

// Summary describes the finished batch.
func (p *Progress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.start)
	return fmt.Sprintf("Generated %d/%d sets (%d failed), %.1f Mpx in %s (%.1f Mpx/s)",
		p.completed-p.failed, p.total, p.failed,
		float64(p.donePixels)/1e6, elapsed.Round(time.Millisecond), p.rate(elapsed))
}
