package pulse

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Calibration is the fitted linear model measured_ms = Slope*commanded_ms +
// Intercept, valid only when the recovered pulse count matched the commanded
// list.
type Calibration struct {
	Slope     float64
	Intercept float64
	Points    int
}

// Loss is the constant timing loss implied by the fit under a unit-slope
// reading of the model.
func (c Calibration) Loss() float64 { return -c.Intercept }

// Compensate inverts the model: the commanded duration expected to produce
// the target effective duration. This is the consumer contract used by the
// shutter commander to pre-compensate requested exposures.
func (c Calibration) Compensate(targetMs float64) float64 {
	return (targetMs + c.Loss()) / c.Slope
}

func (c Calibration) String() string {
	return fmt.Sprintf("measured_ms ~= %.4f*cmd_ms + %.2f (loss %.2f ms, n=%d)",
		c.Slope, c.Intercept, c.Loss(), c.Points)
}

// CountMismatchError reports that the recovered pulse count differs from the
// commanded-duration list. This is a diagnosable, expected outcome, not a
// failure: extraction results are still valid, only the fit is skipped.
type CountMismatchError struct {
	Detected  int
	Commanded int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("detected %d pulses but %d durations were commanded; "+
		"likely causes: over-merging (reduce merge gap), under-filtering "+
		"(raise min peak or min segment frames), or insufficient gap "+
		"separation between commanded pulses", e.Detected, e.Commanded)
}

// MeasuredDurations extracts the measured open durations in milliseconds,
// ordered by pulse index.
func MeasuredDurations(pulses []PulseRecord, frameRate float64) []float64 {
	out := make([]float64, len(pulses))
	for i, p := range pulses {
		out[i] = p.DurationMs(frameRate)
	}
	return out
}

// FitCalibration fits measured against commanded durations by ordinary least
// squares. The two lists are zipped by position: measured[k] is assumed to be
// the response to commanded[k]. A count mismatch returns a
// *CountMismatchError.
func FitCalibration(measuredMs, commandedMs []float64) (Calibration, error) {
	if len(measuredMs) != len(commandedMs) {
		return Calibration{}, &CountMismatchError{Detected: len(measuredMs), Commanded: len(commandedMs)}
	}
	if len(measuredMs) < 2 {
		return Calibration{}, fmt.Errorf("need at least 2 pulses to fit a line, got %d", len(measuredMs))
	}
	intercept, slope := stat.LinearRegression(commandedMs, measuredMs, nil, false)
	return Calibration{Slope: slope, Intercept: intercept, Points: len(measuredMs)}, nil
}
