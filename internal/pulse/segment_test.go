package pulse

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSegmentFrames(t *testing.T) {
	s := Segment{Start: 50, End: 59}
	if s.Frames() != 10 {
		t.Errorf("Frames() = %d, want 10", s.Frames())
	}
	if got := s.DurationMs(100); got != 100 {
		t.Errorf("DurationMs(100) = %f, want 100", got)
	}
	one := Segment{Start: 7, End: 7}
	if one.Frames() != 1 {
		t.Errorf("single-frame Frames() = %d, want 1", one.Frames())
	}
}

func TestMergeClose(t *testing.T) {
	testCases := []struct {
		name string
		segs []Segment
		gap  int
		want []Segment
	}{
		{
			"empty", nil, 10, nil,
		},
		{
			"gap_within_limit_merges",
			[]Segment{{10, 15}, {20, 25}},
			10, []Segment{{10, 25}},
		},
		{
			"gap_beyond_limit_kept_apart",
			[]Segment{{10, 15}, {20, 25}},
			2, []Segment{{10, 15}, {20, 25}},
		},
		{
			"gap_at_exact_limit_merges",
			[]Segment{{10, 15}, {20, 25}},
			4, []Segment{{10, 25}},
		},
		{
			"unsorted_input",
			[]Segment{{20, 25}, {10, 15}},
			10, []Segment{{10, 25}},
		},
		{
			"chain_of_three",
			[]Segment{{0, 4}, {6, 9}, {11, 14}},
			2, []Segment{{0, 14}},
		},
		{
			"contained_segment_absorbed",
			[]Segment{{10, 30}, {12, 18}},
			0, []Segment{{10, 30}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := MergeClose(tc.segs, tc.gap)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("MergeClose mismatch (-want +got):\n%s", diff)
			}
			// A second application must not change the result.
			again := MergeClose(got, tc.gap)
			if diff := cmp.Diff(got, again); diff != "" {
				t.Errorf("MergeClose not idempotent (-first +second):\n%s", diff)
			}
		})
	}
}

func TestBaselineFor(t *testing.T) {
	series := make([]float64, 100)
	for i := range series {
		series[i] = 10 // flat floor
	}
	series[58], series[59] = 12, 14 // drift right before the segment

	base := Baseline{GlobalLo: 3, WindowFrames: 8, MinFrames: 5}

	t.Run("local_median", func(t *testing.T) {
		// Frames 52..59: six at 10, then 12 and 14. Median 10.
		if got := base.For(series, 60); got != 10 {
			t.Errorf("For(60) = %f, want 10", got)
		}
	})

	t.Run("too_few_preceding_frames_falls_back", func(t *testing.T) {
		if got := base.For(series, 3); got != 3 {
			t.Errorf("For(3) = %f, want global lo 3", got)
		}
	})

	t.Run("segment_at_frame_zero_falls_back", func(t *testing.T) {
		if got := base.For(series, 0); got != 3 {
			t.Errorf("For(0) = %f, want global lo 3", got)
		}
	})
}

func TestFilterByStrength(t *testing.T) {
	// 200 frames of floor 0 with two pulses: a strong one at 20..39
	// (amplitude 100) and a faint one at 100..104 (amplitude 2).
	series := make([]float64, 200)
	for i := 20; i < 40; i++ {
		series[i] = 100
	}
	for i := 100; i < 105; i++ {
		series[i] = 2
	}
	segs := []Segment{{20, 39}, {100, 104}}
	base := Baseline{GlobalLo: 0, WindowFrames: 50, MinFrames: 5}

	t.Run("faint_segment_dropped", func(t *testing.T) {
		got := FilterByStrength(segs, series, 100, 10, 0.005, base)
		want := []Segment{{20, 39}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("FilterByStrength mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("thresholds_at_zero_keep_both", func(t *testing.T) {
		got := FilterByStrength(segs, series, 100, 0, 0, base)
		if diff := cmp.Diff(segs, got); diff != "" {
			t.Errorf("FilterByStrength mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("area_threshold_alone_drops", func(t *testing.T) {
		// Faint pulse area: 5 frames * 2 / 100 fps = 0.1 metric*seconds.
		got := FilterByStrength(segs, series, 100, 0, 0.1, base)
		want := []Segment{{20, 39}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("FilterByStrength mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestReduceToWindows(t *testing.T) {
	const fps = 100.0
	base := Baseline{GlobalLo: 0, WindowFrames: 50, MinFrames: 5}

	// Two fragments in one commanded window (starts 0.1s apart), then a
	// separate window 5s later.
	series := make([]float64, 800)
	for i := 100; i < 120; i++ {
		series[i] = 50 // long fragment
	}
	for i := 130; i < 135; i++ {
		series[i] = 200 // short but bright fragment
	}
	for i := 700; i < 710; i++ {
		series[i] = 50
	}
	segs := []Segment{{100, 119}, {130, 134}, {700, 709}}

	t.Run("longest", func(t *testing.T) {
		got := ReduceToWindows(segs, series, fps, SelectLongest, 2.0, base)
		want := []Segment{{100, 119}, {700, 709}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ReduceToWindows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("strongest", func(t *testing.T) {
		// Fragment areas: 20*50/100 = 10 vs 5*200/100 = 10... make the
		// bright one win outright.
		bright := make([]float64, len(series))
		copy(bright, series)
		for i := 130; i < 135; i++ {
			bright[i] = 300
		}
		got := ReduceToWindows(segs, bright, fps, SelectStrongest, 2.0, base)
		want := []Segment{{130, 134}, {700, 709}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ReduceToWindows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("tie_keeps_earliest", func(t *testing.T) {
		// Equal areas (20*50 vs 5*200): the earlier start must survive.
		got := ReduceToWindows(segs, series, fps, SelectStrongest, 2.0, base)
		want := []Segment{{100, 119}, {700, 709}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ReduceToWindows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("boundary_gap_splits_everything", func(t *testing.T) {
		got := ReduceToWindows(segs, series, fps, SelectLongest, 0.05, base)
		if len(got) != 3 {
			t.Errorf("got %d windows, want 3 (all starts >0.05s apart)", len(got))
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := ReduceToWindows(nil, series, fps, SelectLongest, 2.0, base); got != nil {
			t.Errorf("ReduceToWindows(nil) = %v, want nil", got)
		}
	})
}

// Each consolidation pass may only reduce or preserve the segment count.
func TestConsolidationNeverIncreasesCount(t *testing.T) {
	series := make([]float64, 400)
	for i := 50; i < 70; i++ {
		series[i] = 80
	}
	for i := 75; i < 90; i++ {
		series[i] = 90
	}
	for i := 300; i < 320; i++ {
		series[i] = 85
	}
	segs := []Segment{{50, 69}, {75, 89}, {300, 319}}
	base := Baseline{GlobalLo: 0, WindowFrames: 50, MinFrames: 5}

	merged := MergeClose(segs, 6)
	if len(merged) > len(segs) {
		t.Errorf("MergeClose grew count: %d -> %d", len(segs), len(merged))
	}
	filtered := FilterByStrength(merged, series, 100, 10, 0.005, base)
	if len(filtered) > len(merged) {
		t.Errorf("FilterByStrength grew count: %d -> %d", len(merged), len(filtered))
	}
	reduced := ReduceToWindows(filtered, series, 100, SelectStrongest, 2.0, base)
	if len(reduced) > len(filtered) {
		t.Errorf("ReduceToWindows grew count: %d -> %d", len(filtered), len(reduced))
	}
}

func TestParseSelectPolicy(t *testing.T) {
	if p, err := ParseSelectPolicy("longest"); err != nil || p != SelectLongest {
		t.Errorf("ParseSelectPolicy(longest) = %v, %v", p, err)
	}
	if p, err := ParseSelectPolicy("strongest"); err != nil || p != SelectStrongest {
		t.Errorf("ParseSelectPolicy(strongest) = %v, %v", p, err)
	}
	if _, err := ParseSelectPolicy("best"); err == nil {
		t.Error("ParseSelectPolicy(best) expected error")
	}
}

func TestAreaSeconds(t *testing.T) {
	series := []float64{0, 5, 10, 5, 0}
	seg := Segment{0, 4}
	got := areaSeconds(series, seg, 0, 10)
	if math.Abs(got-2.0) > 1e-12 {
		t.Errorf("areaSeconds = %f, want 2.0", got)
	}
	// Values below baseline contribute nothing.
	got = areaSeconds(series, seg, 6, 10)
	if math.Abs(got-0.4) > 1e-12 {
		t.Errorf("areaSeconds above baseline 6 = %f, want 0.4", got)
	}
}
