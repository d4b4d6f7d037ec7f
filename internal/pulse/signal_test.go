package pulse

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestSmoothIdentity(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5}
	for _, width := range []int{0, 1, -3} {
		got := Smooth(series, width)
		if diff := cmp.Diff(series, got); diff != "" {
			t.Errorf("Smooth(width=%d) modified series (-want +got):\n%s", width, diff)
		}
	}
}

func TestSmoothCentered(t *testing.T) {
	// Interior samples of a constant series must stay constant; edges are
	// damped by the zero padding.
	series := []float64{10, 10, 10, 10, 10, 10, 10}
	got := Smooth(series, 3)
	for i := 1; i < len(got)-1; i++ {
		if math.Abs(got[i]-10) > 1e-12 {
			t.Errorf("interior sample %d = %f, want 10", i, got[i])
		}
	}
	// Edge windows cover only 2 of 3 samples.
	want := 10.0 * 2 / 3
	if math.Abs(got[0]-want) > 1e-12 || math.Abs(got[len(got)-1]-want) > 1e-12 {
		t.Errorf("edge samples = %f, %f, want %f", got[0], got[len(got)-1], want)
	}
}

func TestSmoothSpike(t *testing.T) {
	series := []float64{0, 0, 9, 0, 0}
	got := Smooth(series, 3)
	want := []float64{0, 3, 3, 3, 0}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Smooth spike mismatch (-want +got):\n%s", diff)
	}
}

func TestRobustLevels(t *testing.T) {
	// 20 low frames, 20 high frames: percentiles land on the plateaus, so
	// the levels are immune to a single outlier.
	series := make([]float64, 0, 41)
	for i := 0; i < 20; i++ {
		series = append(series, 1.0)
	}
	for i := 0; i < 20; i++ {
		series = append(series, 101.0)
	}
	series = append(series, 100000) // hot pixel frame

	l := RobustLevels(series, 10, 90)
	if l.Lo != 1.0 {
		t.Errorf("Lo = %f, want 1.0", l.Lo)
	}
	if l.Hi != 101.0 {
		t.Errorf("Hi = %f, want 101.0", l.Hi)
	}
	if l.Mid != 51.0 {
		t.Errorf("Mid = %f, want 51.0", l.Mid)
	}
	if l.Swing() != 100.0 {
		t.Errorf("Swing() = %f, want 100.0", l.Swing())
	}
}

func TestSwingClampsAtZero(t *testing.T) {
	l := Levels{Lo: 5, Hi: 3}
	if l.Swing() != 0 {
		t.Errorf("Swing() = %f, want 0", l.Swing())
	}
}
