package pulse

import (
	"fmt"
	"sort"
)

// Segment is one contiguous open run, inclusive frame bounds. Segments are
// value types: consolidation passes replace whole slices, never mutate a
// segment in place.
type Segment struct {
	Start int
	End   int
}

// Frames is the segment length in frames (inclusive bounds).
func (s Segment) Frames() int { return s.End - s.Start + 1 }

// DurationMs is the segment length in milliseconds at the given frame rate.
func (s Segment) DurationMs(frameRate float64) float64 {
	return 1000.0 * float64(s.Frames()) / frameRate
}

func (s Segment) String() string { return fmt.Sprintf("[%d,%d]", s.Start, s.End) }

// Baseline controls how the pre-pulse brightness floor is estimated for a
// segment: the median of up to WindowFrames frames strictly preceding the
// segment when at least MinFrames exist, otherwise the global low level.
// The local window absorbs slow drift better than a single global value.
type Baseline struct {
	GlobalLo     float64
	WindowFrames int
	MinFrames    int
}

// For returns the baseline for a segment starting at frame start.
func (b Baseline) For(series []float64, start int) float64 {
	n := b.WindowFrames
	if n > start {
		n = start
	}
	if n < b.MinFrames || n == 0 {
		return b.GlobalLo
	}
	return median(series[start-n : start])
}

// MergeClose merges segments separated by gaps of at most gapFrames frames,
// absorbing brief dropouts mid-pulse (e.g. a single missed bright frame).
// The input need not be sorted; the output is sorted by start frame.
// Running MergeClose on its own output is a no-op.
func MergeClose(segs []Segment, gapFrames int) []Segment {
	if len(segs) == 0 {
		return nil
	}
	sorted := make([]Segment, len(segs))
	copy(sorted, segs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := []Segment{sorted[0]}
	for _, s := range sorted[1:] {
		last := &out[len(out)-1]
		if s.Start-last.End-1 <= gapFrames {
			if s.End > last.End {
				last.End = s.End
			}
		} else {
			out = append(out, s)
		}
	}
	return out
}

// peakAbove is the maximum of the segment's baseline-subtracted values,
// clamped at zero.
func peakAbove(series []float64, seg Segment, baseline float64) float64 {
	peak := 0.0
	for _, v := range series[seg.Start : seg.End+1] {
		if bs := v - baseline; bs > peak {
			peak = bs
		}
	}
	return peak
}

// areaSeconds is the integral of the segment's baseline-subtracted values
// (clamped at zero) in metric*seconds.
func areaSeconds(series []float64, seg Segment, baseline, frameRate float64) float64 {
	var sum float64
	for _, v := range series[seg.Start : seg.End+1] {
		if bs := v - baseline; bs > 0 {
			sum += bs
		}
	}
	return sum / frameRate
}

// FilterByStrength drops segments whose peak above baseline is below minPeak
// or whose area above baseline is at most minAreaSeconds. This removes
// amplitude chatter that passed the hysteresis test only marginally; it is
// distinct from the duration filter applied during segment extraction.
func FilterByStrength(segs []Segment, series []float64, frameRate float64, minPeak, minAreaSeconds float64, base Baseline) []Segment {
	var kept []Segment
	for _, seg := range segs {
		baseline := base.For(series, seg.Start)
		peak := peakAbove(series, seg, baseline)
		area := areaSeconds(series, seg, baseline, frameRate)
		if peak >= minPeak && area > minAreaSeconds {
			kept = append(kept, seg)
		}
	}
	return kept
}

// SelectPolicy chooses the representative segment kept per pulse window.
type SelectPolicy int

const (
	// SelectLongest keeps the longest segment in each window. Use when
	// duration fragmentation dominates.
	SelectLongest SelectPolicy = iota
	// SelectStrongest keeps the segment with the greatest area above
	// baseline. Use when segments have comparable duration but differing
	// brightness.
	SelectStrongest
)

func (p SelectPolicy) String() string {
	switch p {
	case SelectLongest:
		return "longest"
	case SelectStrongest:
		return "strongest"
	default:
		return fmt.Sprintf("SelectPolicy(%d)", int(p))
	}
}

// ParseSelectPolicy parses a policy name from configuration.
func ParseSelectPolicy(s string) (SelectPolicy, error) {
	switch s {
	case "longest":
		return SelectLongest, nil
	case "strongest":
		return SelectStrongest, nil
	default:
		return 0, fmt.Errorf("unknown window policy %q (want longest or strongest)", s)
	}
}

// ReduceToWindows collapses any residual segments sharing one commanded pulse
// window down to a single representative. Windows are delimited by gaps
// between consecutive segment starts exceeding boundaryGapSeconds; within a
// window the policy picks the survivor. Ties resolve to the earliest-starting
// candidate.
func ReduceToWindows(segs []Segment, series []float64, frameRate float64, policy SelectPolicy, boundaryGapSeconds float64, base Baseline) []Segment {
	if len(segs) == 0 {
		return nil
	}
	sorted := make([]Segment, len(segs))
	copy(sorted, segs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var out []Segment
	group := []Segment{sorted[0]}
	for _, s := range sorted[1:] {
		prev := group[len(group)-1]
		gap := float64(s.Start-prev.Start) / frameRate
		if gap > boundaryGapSeconds {
			out = append(out, selectRepresentative(group, series, frameRate, policy, base))
			group = group[:0]
		}
		group = append(group, s)
	}
	out = append(out, selectRepresentative(group, series, frameRate, policy, base))
	return out
}

func selectRepresentative(group []Segment, series []float64, frameRate float64, policy SelectPolicy, base Baseline) Segment {
	best := group[0]
	bestScore := windowScore(best, series, frameRate, policy, base)
	for _, s := range group[1:] {
		// strict > keeps the earliest-starting candidate on ties
		if score := windowScore(s, series, frameRate, policy, base); score > bestScore {
			best, bestScore = s, score
		}
	}
	return best
}

func windowScore(seg Segment, series []float64, frameRate float64, policy SelectPolicy, base Baseline) float64 {
	if policy == SelectStrongest {
		return areaSeconds(series, seg, base.For(series, seg.Start), frameRate)
	}
	return float64(seg.Frames())
}
