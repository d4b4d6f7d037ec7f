package pulse

import (
	"errors"
	"fmt"
	"log"
)

// ErrSeriesTooShort is returned when fewer than MinSeriesLen frames were
// ingested; the percentile thresholds are meaningless on such a series.
var ErrSeriesTooShort = errors.New("metric series too short (video too short or failed to read frames)")

// Result is the full output of one extraction run. All slices are owned by
// the result and are not mutated after Run returns.
type Result struct {
	FrameRate float64
	Raw       []float64
	Smoothed  []float64

	Levels     Levels
	Thresholds Thresholds

	// RawSegments are the hysteresis segments before consolidation;
	// Segments are the survivors after merge, strength filter and window
	// reduction. len(Segments) <= len(RawSegments) always.
	RawSegments []Segment
	Segments    []Segment
	Pulses      []PulseRecord

	// Degenerate is set when the swing between the robust levels was below
	// the epsilon: the signal does not distinguish open from closed, so the
	// run carries zero pulses but is not an error.
	Degenerate bool
}

// Run executes the extraction pipeline over a raw per-frame metric series.
// The series must be in frame order; every stage below assumes monotonically
// increasing frame indices.
func Run(raw []float64, frameRate float64, cfg *TuningConfig) (*Result, error) {
	if cfg == nil {
		cfg = EmptyTuningConfig()
	}
	if len(raw) < MinSeriesLen {
		return nil, fmt.Errorf("%w: got %d frames, need %d", ErrSeriesTooShort, len(raw), MinSeriesLen)
	}

	sm := Smooth(raw, cfg.GetSmoothWindow())
	levels := RobustLevels(sm, cfg.GetLoPercentile(), cfg.GetHiPercentile())

	res := &Result{
		FrameRate: frameRate,
		Raw:       raw,
		Smoothed:  sm,
		Levels:    levels,
	}

	log.Printf("frames=%d fps=%.2f levels: closed~%.3f open~%.3f swing~%.3f",
		len(raw), frameRate, levels.Lo, levels.Hi, levels.Swing())

	if levels.Swing() < cfg.GetSwingEpsilon() {
		log.Printf("swing~0: metric does not distinguish open from closed; " +
			"check that the bright blob is captured, or increase the reducer's top-K")
		res.Degenerate = true
		return res, nil
	}

	thr := DeriveThresholds(levels, cfg.GetThresholdMode(), cfg.GetHysteresisFraction(), cfg.GetPlateauFraction())
	res.Thresholds = thr
	log.Printf("hysteresis (%s): thr_open=%.3f thr_close=%.3f",
		cfg.GetThresholdMode(), thr.Open, thr.Close)

	states := States(sm, thr)
	res.RawSegments = FindSegments(states, cfg.GetMinSegmentFrames())

	base := Baseline{
		GlobalLo:     levels.Lo,
		WindowFrames: cfg.GetBaselineWindowFrames(),
		MinFrames:    cfg.GetBaselineMinFrames(),
	}

	segs := MergeClose(res.RawSegments, cfg.GetMergeGapFrames(frameRate))
	segs = FilterByStrength(segs, sm, frameRate, cfg.GetMinPeak(), cfg.GetMinAreaSeconds(), base)
	segs = ReduceToWindows(segs, sm, frameRate, cfg.GetWindowPolicy(), cfg.GetBoundaryGapSeconds(), base)
	res.Segments = segs

	log.Printf("segments: raw=%d final=%d", len(res.RawSegments), len(segs))

	res.Pulses = AnalyzePulses(segs, sm, frameRate, cfg.GetPeakFractions(), base)
	return res, nil
}

// Calibrate fits the run's measured durations against the commanded list.
// A *CountMismatchError means the fit was skipped, not that the run failed.
func (r *Result) Calibrate(commandedMs []float64) (Calibration, error) {
	return FitCalibration(MeasuredDurations(r.Pulses, r.FrameRate), commandedMs)
}
