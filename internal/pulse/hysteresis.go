package pulse

import "fmt"

// State is one of the two shutter states inferred from the smoothed metric.
type State int

const (
	// StateClosed is the initial state: the metric sits near the dark level.
	StateClosed State = iota
	// StateOpen means the metric has crossed the open threshold and has not
	// yet fallen back through the close threshold.
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Thresholds is the hysteresis band for the state machine. Open must exceed
// Close; the band between them is what keeps single-sample noise near the
// boundary from flipping the state back and forth.
type Thresholds struct {
	Open  float64
	Close float64
}

// Next returns the state after observing value v.
//
//	closed -> open  only when v >= Open
//	open   -> closed only when v <= Close
//
// Values inside the band never cause a transition.
func (s State) Next(v float64, t Thresholds) State {
	switch s {
	case StateClosed:
		if v >= t.Open {
			return StateOpen
		}
	case StateOpen:
		if v <= t.Close {
			return StateClosed
		}
	}
	return s
}

// ThresholdMode selects how the hysteresis thresholds are derived from the
// robust levels.
type ThresholdMode int

const (
	// ModeMidpoint places the band symmetrically around the midpoint level.
	// Registers a pulse as soon as the signal is closer to open than closed.
	ModeMidpoint ThresholdMode = iota
	// ModePlateau anchors the open threshold near the bright plateau, so a
	// pulse only registers while the shutter is near fully open. Preferred
	// for well-separated, mostly-binary signals.
	ModePlateau
)

func (m ThresholdMode) String() string {
	switch m {
	case ModeMidpoint:
		return "midpoint"
	case ModePlateau:
		return "plateau"
	default:
		return fmt.Sprintf("ThresholdMode(%d)", int(m))
	}
}

// ParseThresholdMode parses a mode name from configuration.
func ParseThresholdMode(s string) (ThresholdMode, error) {
	switch s {
	case "midpoint":
		return ModeMidpoint, nil
	case "plateau":
		return ModePlateau, nil
	default:
		return 0, fmt.Errorf("unknown threshold mode %q (want midpoint or plateau)", s)
	}
}

// DeriveThresholds computes the hysteresis band from the robust levels.
//
// Midpoint mode: open/close at mid +/- hystFrac*swing.
// Plateau mode: open at lo + plateauFrac*swing, close a further
// hystFrac*swing below it so a small dip does not end the open state.
func DeriveThresholds(l Levels, mode ThresholdMode, hystFrac, plateauFrac float64) Thresholds {
	swing := l.Swing()
	switch mode {
	case ModePlateau:
		open := l.Lo + plateauFrac*swing
		return Thresholds{Open: open, Close: open - hystFrac*swing}
	default:
		band := hystFrac * swing
		return Thresholds{Open: l.Mid + band, Close: l.Mid - band}
	}
}

// States runs the hysteresis machine over the smoothed series and returns the
// per-frame open flag.
func States(series []float64, t Thresholds) []bool {
	out := make([]bool, len(series))
	state := StateClosed
	for i, v := range series {
		state = state.Next(v, t)
		out[i] = state == StateOpen
	}
	return out
}

// FindSegments extracts maximal runs of open frames at least minLen frames
// long. Shorter runs are dropped entirely; this is the first-line duration
// chatter filter.
func FindSegments(states []bool, minLen int) []Segment {
	var segs []Segment
	start := -1
	for i, open := range states {
		if open && start < 0 {
			start = i
		}
		if !open && start >= 0 {
			if i-start >= minLen {
				segs = append(segs, Segment{Start: start, End: i - 1})
			}
			start = -1
		}
	}
	if start >= 0 {
		end := len(states) - 1
		if end-start+1 >= minLen {
			segs = append(segs, Segment{Start: start, End: end})
		}
	}
	return segs
}
