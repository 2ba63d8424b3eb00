package generator

import "fmt"

// Stage identifies a progress milestone.
type Stage int

const (
	StageOctave Stage = iota + 1
	StageCompositeStart
	StageCompositeEnd
	StageNormal
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageOctave:
		return "octave"
	case StageCompositeStart:
		return "composite"
	case StageCompositeEnd:
		return "composite_done"
	case StageNormal:
		return "normal"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Event is one progress notification. Octave fields are set for StageOctave.
type Event struct {
	Label   string `json:"label"`
	Stage   Stage  `json:"stage"`
	Octave  int    `json:"octave,omitempty"`
	Octaves int    `json:"octaves,omitempty"`
}

// ProgressFunc receives events synchronously, in stage order.
type ProgressFunc func(Event)

func octaveEvent(i, n int) Event {
	return Event{
		Stage:   StageOctave,
		Label:   fmt.Sprintf("Generating Octave %d/%d...", i, n),
		Octave:  i,
		Octaves: n,
	}
}

var (
	compositeStartEvent = Event{Stage: StageCompositeStart, Label: "Coloring & Compositing..."}
	compositeEndEvent   = Event{Stage: StageCompositeEnd, Label: "Compositing complete"}
	normalEvent         = Event{Stage: StageNormal, Label: "Calculating Normal Map..."}
	doneEvent           = Event{Stage: StageDone, Label: "Done"}
)
