// Package pulse extracts shutter pulse timing from a per-frame brightness
// series and calibrates commanded pulse durations against measured ones.
//
// The pipeline is strictly forward: smooth -> robust levels -> hysteresis
// states -> raw segments -> merge -> strength filter -> window reduction ->
// per-pulse analysis -> optional calibration fit. Every stage is a pure
// transformation over the slice produced by the previous stage.
package pulse

import (
	"github.com/montanaflynn/stats"
)

// MinSeriesLen is the fewest frames a capture may contain before the run is
// rejected as "video too short".
const MinSeriesLen = 10

// Levels holds the robust brightness levels of a metric series. Lo and Hi are
// low/high percentiles of the full series (not min/max, so single hot or dark
// frames cannot skew them); Mid is their midpoint.
type Levels struct {
	Mid float64
	Lo  float64
	Hi  float64
}

// Swing is the dynamic range between the robust levels, clamped at zero.
// A swing near zero means the metric does not distinguish open from closed.
func (l Levels) Swing() float64 {
	s := l.Hi - l.Lo
	if s < 0 {
		return 0
	}
	return s
}

// Smooth returns a centered moving average of series with the given window
// width. Widths <= 1 return the input unchanged. Windows that hang over
// either end of the series are zero-padded, so edge values are damped rather
// than averaged over fewer samples.
func Smooth(series []float64, width int) []float64 {
	if width <= 1 || len(series) == 0 {
		return series
	}
	out := make([]float64, len(series))
	// Window for index i spans [i+off-width+1, i+off]; off centers it, with
	// the extra sample on the left for even widths.
	off := (width - 1) / 2
	for i := range series {
		var sum float64
		for j := i + off - width + 1; j <= i+off; j++ {
			if j < 0 || j >= len(series) {
				continue
			}
			sum += series[j]
		}
		out[i] = sum / float64(width)
	}
	return out
}

// RobustLevels computes the low/high percentile brightness levels of the
// series and their midpoint.
func RobustLevels(series []float64, loPct, hiPct float64) Levels {
	lo := percentile(series, loPct)
	hi := percentile(series, hiPct)
	return Levels{Mid: 0.5 * (lo + hi), Lo: lo, Hi: hi}
}

func percentile(series []float64, p float64) float64 {
	v, err := stats.Percentile(series, p)
	if err != nil {
		return 0
	}
	return v
}

func median(series []float64) float64 {
	v, err := stats.Median(series)
	if err != nil {
		return 0
	}
	return v
}
