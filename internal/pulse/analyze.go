package pulse

// FractionTiming reports how long a pulse spent at or above a fraction of its
// own peak (not the global peak). Frames are absolute; the elapsed time is
// inclusive of both crossing frames. Defined is false when the pulse peak is
// indistinguishable from zero or no frame qualifies.
type FractionTiming struct {
	Fraction   float64
	StartFrame int
	EndFrame   int
	ElapsedMs  float64
	Defined    bool
}

// PulseRecord is the final, one-per-commanded-pulse entity. It is created
// once per surviving segment and never mutated afterwards.
type PulseRecord struct {
	Index     int // 1-based, ascending start frame
	Segment   Segment
	Baseline  float64
	Peak      float64 // peak above baseline
	PeakFrame int     // absolute frame of the peak
	// AUCSeconds is the integrated area above baseline in metric*seconds,
	// usable as an exposure-equivalent proxy.
	AUCSeconds float64
	Timings    []FractionTiming
}

// StartSeconds is the pulse start time at the given frame rate.
func (p PulseRecord) StartSeconds(frameRate float64) float64 {
	return float64(p.Segment.Start) / frameRate
}

// EndSeconds is the pulse end time at the given frame rate.
func (p PulseRecord) EndSeconds(frameRate float64) float64 {
	return float64(p.Segment.End) / frameRate
}

// PeakSeconds is the time of the pulse peak at the given frame rate.
func (p PulseRecord) PeakSeconds(frameRate float64) float64 {
	return float64(p.PeakFrame) / frameRate
}

// DurationMs is the measured open duration in milliseconds.
func (p PulseRecord) DurationMs(frameRate float64) float64 {
	return p.Segment.DurationMs(frameRate)
}

// peakEpsilon guards the fractional-timing division: a pulse whose peak is
// below this has no meaningful fraction crossings.
const peakEpsilon = 1e-9

// AnalyzePulses computes per-segment photometric statistics. Pulse indices
// are assigned by ascending start frame, 1-based. No merging or dropping
// happens here; any further rejection must happen during consolidation.
func AnalyzePulses(segs []Segment, series []float64, frameRate float64, fractions []float64, base Baseline) []PulseRecord {
	pulses := make([]PulseRecord, 0, len(segs))
	for i, seg := range segs {
		baseline := base.For(series, seg.Start)

		// Baseline-subtracted trace, clamped at zero.
		trace := make([]float64, seg.Frames())
		peak, peakFrame := 0.0, seg.Start
		var sum float64
		for j := range trace {
			bs := series[seg.Start+j] - baseline
			if bs < 0 {
				bs = 0
			}
			trace[j] = bs
			sum += bs
			if bs > peak {
				peak, peakFrame = bs, seg.Start+j
			}
		}

		timings := make([]FractionTiming, 0, len(fractions))
		for _, frac := range fractions {
			timings = append(timings, fractionTiming(trace, seg.Start, frac, peak, frameRate))
		}

		pulses = append(pulses, PulseRecord{
			Index:      i + 1,
			Segment:    seg,
			Baseline:   baseline,
			Peak:       peak,
			PeakFrame:  peakFrame,
			AUCSeconds: sum / frameRate,
			Timings:    timings,
		})
	}
	return pulses
}

// fractionTiming finds the first and last frame of the baseline-subtracted
// trace at or above frac*peak.
func fractionTiming(trace []float64, startFrame int, frac, peak, frameRate float64) FractionTiming {
	ft := FractionTiming{Fraction: frac}
	if peak <= peakEpsilon {
		return ft
	}
	thr := frac * peak
	first, last := -1, -1
	for j, v := range trace {
		if v >= thr {
			if first < 0 {
				first = j
			}
			last = j
		}
	}
	if first < 0 {
		return ft
	}
	ft.StartFrame = startFrame + first
	ft.EndFrame = startFrame + last
	ft.ElapsedMs = 1000.0 * float64(last-first+1) / frameRate
	ft.Defined = true
	return ft
}
