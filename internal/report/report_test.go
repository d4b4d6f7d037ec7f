package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/shutter.report/internal/pulse"
)

func reportResult() *pulse.Result {
	raw := make([]float64, 60)
	sm := make([]float64, 60)
	for i := range raw {
		raw[i], sm[i] = 2, 2
	}
	for i := 20; i < 30; i++ {
		raw[i], sm[i] = 120, 118
	}
	return &pulse.Result{
		FrameRate:  100,
		Raw:        raw,
		Smoothed:   sm,
		Levels:     pulse.Levels{Mid: 61, Lo: 2, Hi: 120},
		Thresholds: pulse.Thresholds{Open: 116, Close: 112},
		Segments:   []pulse.Segment{{Start: 20, End: 29}},
		Pulses: []pulse.PulseRecord{
			{Index: 1, Segment: pulse.Segment{Start: 20, End: 29}, Peak: 116, PeakFrame: 24},
		},
	}
}

func TestSaveLightcurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lightcurve.png")
	if err := SaveLightcurve(reportResult(), path); err != nil {
		t.Fatalf("SaveLightcurve: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() == 0 {
		t.Error("lightcurve PNG is empty")
	}
}

func TestSaveLightcurveDegenerate(t *testing.T) {
	res := &pulse.Result{
		FrameRate:  100,
		Raw:        make([]float64, 30),
		Smoothed:   make([]float64, 30),
		Degenerate: true,
	}
	path := filepath.Join(t.TempDir(), "flat.png")
	if err := SaveLightcurve(res, path); err != nil {
		t.Fatalf("SaveLightcurve on degenerate run: %v", err)
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(reportResult(), &buf); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}

	html := buf.String()
	for _, want := range []string{"raw", "smoothed", "pulse peaks", "pulses=1"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestWriteHTMLDegenerate(t *testing.T) {
	res := &pulse.Result{
		FrameRate:  100,
		Raw:        make([]float64, 30),
		Smoothed:   make([]float64, 30),
		Degenerate: true,
	}
	var buf bytes.Buffer
	if err := WriteHTML(res, &buf); err != nil {
		t.Fatalf("WriteHTML on degenerate run: %v", err)
	}
	if !strings.Contains(buf.String(), "degenerate") {
		t.Error("report does not flag the degenerate run")
	}
}
