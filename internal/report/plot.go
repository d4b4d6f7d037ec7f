// Package report renders extraction results for human review: a lightcurve
// PNG for quick inspection and a standalone HTML trace report.
package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/shutter.report/internal/pulse"
)

// SaveLightcurve writes a PNG of the smoothed metric series with the
// detected pulse segments and hysteresis thresholds overlaid.
func SaveLightcurve(res *pulse.Result, path string) error {
	p := plot.New()
	p.Title.Text = "shutter lightcurve"
	p.X.Label.Text = "frame index"
	p.Y.Label.Text = "metric"

	pts := make(plotter.XYs, len(res.Smoothed))
	for i, v := range res.Smoothed {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("smoothed", line)

	if !res.Degenerate {
		for _, thr := range []struct {
			y float64
			c color.RGBA
		}{
			{res.Thresholds.Open, color.RGBA{R: 200, A: 255}},
			{res.Thresholds.Close, color.RGBA{B: 200, A: 255}},
		} {
			h, err := horizontalLine(thr.y, len(res.Smoothed))
			if err != nil {
				return err
			}
			h.Color = thr.c
			h.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
			p.Add(h)
		}
	}

	if len(res.Pulses) > 0 {
		peaks := make(plotter.XYs, len(res.Pulses))
		for i, pr := range res.Pulses {
			peaks[i].X = float64(pr.PeakFrame)
			peaks[i].Y = res.Smoothed[pr.PeakFrame]
		}
		scatter, err := plotter.NewScatter(peaks)
		if err != nil {
			return err
		}
		p.Add(scatter)
		p.Legend.Add("pulse peaks", scatter)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(14*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save lightcurve plot: %w", err)
	}
	return nil
}

func horizontalLine(y float64, width int) (*plotter.Line, error) {
	return plotter.NewLine(plotter.XYs{{X: 0, Y: y}, {X: float64(width - 1), Y: y}})
}
