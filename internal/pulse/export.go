package pulse

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVWriter writes the per-pulse summary and per-frame trace artifacts.
// Degenerate runs still produce the headers so downstream tooling sees a
// consistent schema with zero rows.
type CSVWriter struct {
	Summary *csv.Writer
	Trace   *csv.Writer
}

// NewCSVWriter creates a CSVWriter over the given summary and trace writers.
// Either writer may be nil to skip that artifact.
func NewCSVWriter(summary, trace io.Writer) *CSVWriter {
	w := &CSVWriter{}
	if summary != nil {
		w.Summary = csv.NewWriter(summary)
	}
	if trace != nil {
		w.Trace = csv.NewWriter(trace)
	}
	return w
}

// summaryHeader builds the summary columns, including the per-fraction
// start/end/elapsed triple for every configured fraction.
func summaryHeader(fractions []float64) []string {
	header := []string{
		"pulse_index", "start_frame", "end_frame",
		"start_time_s", "end_time_s", "duration_ms",
		"baseline", "peak_bs", "peak_frame", "peak_time_s", "auc_metric_s",
	}
	for _, f := range fractions {
		tag := int(f * 100)
		header = append(header,
			fmt.Sprintf("t%d_start_frame", tag),
			fmt.Sprintf("t%d_end_frame", tag),
			fmt.Sprintf("t%d_ms", tag),
		)
	}
	return header
}

// WriteSummary writes one row per pulse record.
func (c *CSVWriter) WriteSummary(res *Result) error {
	if c.Summary == nil {
		return nil
	}

	var fractions []float64
	if len(res.Pulses) > 0 {
		for _, ft := range res.Pulses[0].Timings {
			fractions = append(fractions, ft.Fraction)
		}
	}
	if err := c.Summary.Write(summaryHeader(fractions)); err != nil {
		return err
	}

	for _, p := range res.Pulses {
		row := []string{
			fmt.Sprintf("%d", p.Index),
			fmt.Sprintf("%d", p.Segment.Start),
			fmt.Sprintf("%d", p.Segment.End),
			fmt.Sprintf("%.6f", p.StartSeconds(res.FrameRate)),
			fmt.Sprintf("%.6f", p.EndSeconds(res.FrameRate)),
			fmt.Sprintf("%.3f", p.DurationMs(res.FrameRate)),
			fmt.Sprintf("%.3f", p.Baseline),
			fmt.Sprintf("%.3f", p.Peak),
			fmt.Sprintf("%d", p.PeakFrame),
			fmt.Sprintf("%.6f", p.PeakSeconds(res.FrameRate)),
			fmt.Sprintf("%.6f", p.AUCSeconds),
		}
		for _, ft := range p.Timings {
			if ft.Defined {
				row = append(row,
					fmt.Sprintf("%d", ft.StartFrame),
					fmt.Sprintf("%d", ft.EndFrame),
					fmt.Sprintf("%.3f", ft.ElapsedMs),
				)
			} else {
				row = append(row, "", "", "")
			}
		}
		if err := c.Summary.Write(row); err != nil {
			return err
		}
	}

	c.Summary.Flush()
	return c.Summary.Error()
}

// WriteTrace writes one row per frame within any recovered pulse: pulse id,
// absolute frame, time, raw metric and smoothed metric.
func (c *CSVWriter) WriteTrace(res *Result) error {
	if c.Trace == nil {
		return nil
	}
	if err := c.Trace.Write([]string{"pulse_id", "abs_frame", "time_s", "metric_raw", "metric_sm"}); err != nil {
		return err
	}
	for _, p := range res.Pulses {
		for fr := p.Segment.Start; fr <= p.Segment.End; fr++ {
			row := []string{
				fmt.Sprintf("%d", p.Index),
				fmt.Sprintf("%d", fr),
				fmt.Sprintf("%.6f", float64(fr)/res.FrameRate),
				fmt.Sprintf("%.6f", res.Raw[fr]),
				fmt.Sprintf("%.6f", res.Smoothed[fr]),
			}
			if err := c.Trace.Write(row); err != nil {
				return err
			}
		}
	}
	c.Trace.Flush()
	return c.Trace.Error()
}
