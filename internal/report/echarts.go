package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/shutter.report/internal/pulse"
)

// WriteHTML renders a standalone HTML report: raw and smoothed metric traces
// over the whole capture, with the recovered pulse peaks as a scatter layer.
// The file is self-contained apart from the echarts CDN assets.
func WriteHTML(res *pulse.Result, w io.Writer) error {
	x := make([]string, len(res.Raw))
	rawData := make([]opts.LineData, len(res.Raw))
	smData := make([]opts.LineData, len(res.Smoothed))
	for i := range res.Raw {
		x[i] = fmt.Sprintf("%d", i)
		rawData[i] = opts.LineData{Value: res.Raw[i]}
		smData[i] = opts.LineData{Value: res.Smoothed[i]}
	}

	subtitle := fmt.Sprintf("frames=%d fps=%.2f pulses=%d", len(res.Raw), res.FrameRate, len(res.Pulses))
	if res.Degenerate {
		subtitle += " (degenerate: swing~0)"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "shutter pulse trace", Theme: "dark", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Shutter Pulse Trace", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "metric"}),
	)
	line.SetXAxis(x).
		AddSeries("raw", rawData).
		AddSeries("smoothed", smData)

	if len(res.Pulses) > 0 {
		peaks := make([]opts.ScatterData, len(res.Pulses))
		for i, p := range res.Pulses {
			peaks[i] = opts.ScatterData{Value: []interface{}{p.PeakFrame, res.Smoothed[p.PeakFrame]}}
		}
		scatter := charts.NewScatter()
		scatter.AddSeries("pulse peaks", peaks, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
		line.Overlap(scatter)
	}

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}
