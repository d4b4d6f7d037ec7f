// Command shutter-report analyzes a captured pulse video: it reduces each
// frame to a scalar brightness metric, extracts one segment per commanded
// shutter pulse, writes per-pulse summary and per-frame trace CSVs, and fits
// a linear calibration of measured against commanded duration.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/banshee-data/shutter.report/internal/frames"
	"github.com/banshee-data/shutter.report/internal/pulse"
	"github.com/banshee-data/shutter.report/internal/pulsedb"
	"github.com/banshee-data/shutter.report/internal/report"
)

// Config holds the analyzer's command line configuration.
type Config struct {
	FramesDir string
	SeriesCSV string
	FrameRate float64
	Metric    string
	TopK      int
	Workers   int

	TuningFile  string
	SummaryCSV  string
	TraceCSV    string
	PlotPNG     string
	ReportHTML  string
	DBFile      string
	CommandedMs string
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.FramesDir, "frames", "", "Folder of frame images (png/jpeg) to analyze")
	flag.StringVar(&cfg.SeriesCSV, "series", "", "Precomputed per-frame metric CSV (skips frame decoding)")
	flag.Float64Var(&cfg.FrameRate, "fps", 0, "Capture frame rate; 0 uses source metadata or the fallback")
	flag.StringVar(&cfg.Metric, "metric", "star", "Per-frame reducer: star or mean")
	flag.IntVar(&cfg.TopK, "topk", 200, "Top-K brightest pixels for the star metric")
	flag.IntVar(&cfg.Workers, "workers", 1, "Parallel metric workers (frame order is preserved)")

	flag.StringVar(&cfg.TuningFile, "config", "", "Tuning config JSON file")
	flag.StringVar(&cfg.SummaryCSV, "summary", "pulse_summary.csv", "Per-pulse summary CSV output")
	flag.StringVar(&cfg.TraceCSV, "trace", "", "Per-frame trace CSV output (optional)")
	flag.StringVar(&cfg.PlotPNG, "plot", "", "Lightcurve PNG output (optional)")
	flag.StringVar(&cfg.ReportHTML, "report", "", "HTML trace report output (optional)")
	flag.StringVar(&cfg.DBFile, "db", "", "Sqlite run store (optional)")
	flag.StringVar(&cfg.CommandedMs, "commanded", "", "Commanded pulse durations in ms, comma separated (overrides config)")

	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()

	if (cfg.FramesDir == "") == (cfg.SeriesCSV == "") {
		log.Fatal("exactly one of -frames or -series is required")
	}

	tuning := pulse.EmptyTuningConfig()
	if cfg.TuningFile != "" {
		var err error
		tuning, err = pulse.LoadTuningConfig(cfg.TuningFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	series, frameRate, source, err := ingest(cfg, tuning)
	if err != nil {
		log.Fatalf("ingestion failed: %v", err)
	}

	res, err := pulse.Run(series, frameRate, tuning)
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	if err := writeArtifacts(cfg, res); err != nil {
		log.Fatalf("failed to write outputs: %v", err)
	}

	var store *pulsedb.DB
	runID := ""
	if cfg.DBFile != "" {
		store, err = pulsedb.New(cfg.DBFile)
		if err != nil {
			log.Fatalf("failed to open run store: %v", err)
		}
		defer store.Close()
		runID, err = store.RecordRun(res, source)
		if err != nil {
			log.Fatalf("failed to record run: %v", err)
		}
		log.Printf("recorded run %s", runID)
	}

	commanded, err := commandedDurations(cfg, tuning)
	if err != nil {
		log.Fatalf("invalid commanded durations: %v", err)
	}
	if len(commanded) == 0 || res.Degenerate {
		return
	}

	cal, err := res.Calibrate(commanded)
	var mismatch *pulse.CountMismatchError
	switch {
	case errors.As(err, &mismatch):
		log.Printf("calibration skipped: %v", mismatch)
	case err != nil:
		log.Printf("calibration skipped: %v", err)
	default:
		fmt.Printf("fit: %s\n", cal)
		if store != nil {
			if err := store.RecordCalibration(runID, cal); err != nil {
				log.Printf("failed to record calibration: %v", err)
			}
		}
	}
}

// ingest produces the raw metric series, the resolved frame rate, and a
// human-readable source label.
func ingest(cfg Config, tuning *pulse.TuningConfig) ([]float64, float64, string, error) {
	if cfg.SeriesCSV != "" {
		f, err := os.Open(cfg.SeriesCSV)
		if err != nil {
			return nil, 0, "", err
		}
		defer f.Close()
		series, err := frames.ReadSeriesCSV(f)
		if err != nil {
			return nil, 0, "", err
		}
		rate := resolveFrameRate(cfg.FrameRate, tuning)
		return series, rate, cfg.SeriesCSV, nil
	}

	nominal := cfg.FrameRate
	if nominal == 0 {
		nominal = math.NaN()
	}
	src, err := frames.OpenDir(cfg.FramesDir, nominal)
	if err != nil {
		return nil, 0, "", err
	}

	var red frames.Reducer
	switch cfg.Metric {
	case "star":
		red = frames.StarMetric{TopK: cfg.TopK}
	case "mean":
		red = frames.MeanMetric{}
	default:
		src.Close()
		return nil, 0, "", fmt.Errorf("unknown metric %q (want star or mean)", cfg.Metric)
	}

	series, err := frames.CollectParallel(src, red, cfg.Workers)
	if err != nil {
		return nil, 0, "", err
	}
	rate := resolveFrameRate(src.NominalFrameRate(), tuning)
	return series, rate, cfg.FramesDir, nil
}

func resolveFrameRate(nominal float64, tuning *pulse.TuningConfig) float64 {
	if nominal == 0 {
		nominal = math.NaN()
	}
	rate, fellBack := frames.NominalOrFallback(nominal, tuning.GetFallbackFrameRate())
	if fellBack {
		log.Printf("WARN: frame rate metadata missing or invalid; using %.1f fps fallback", rate)
	}
	return rate
}

// writeArtifacts writes the summary/trace CSVs and any optional outputs.
// Degenerate runs still produce the CSV headers for schema consistency.
func writeArtifacts(cfg Config, res *pulse.Result) error {
	summaryFile, err := os.Create(cfg.SummaryCSV)
	if err != nil {
		return err
	}
	defer summaryFile.Close()

	var traceFile *os.File
	if cfg.TraceCSV != "" {
		traceFile, err = os.Create(cfg.TraceCSV)
		if err != nil {
			return err
		}
		defer traceFile.Close()
	}

	w := pulse.NewCSVWriter(summaryFile, traceFile)
	if err := w.WriteSummary(res); err != nil {
		return fmt.Errorf("summary CSV: %w", err)
	}
	if traceFile != nil {
		if err := w.WriteTrace(res); err != nil {
			return fmt.Errorf("trace CSV: %w", err)
		}
		log.Printf("wrote %s", cfg.TraceCSV)
	}
	log.Printf("wrote %s", cfg.SummaryCSV)

	if cfg.PlotPNG != "" {
		if err := report.SaveLightcurve(res, cfg.PlotPNG); err != nil {
			return err
		}
		log.Printf("wrote %s", cfg.PlotPNG)
	}
	if cfg.ReportHTML != "" {
		f, err := os.Create(cfg.ReportHTML)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := report.WriteHTML(res, f); err != nil {
			return err
		}
		log.Printf("wrote %s", cfg.ReportHTML)
	}
	return nil
}

func commandedDurations(cfg Config, tuning *pulse.TuningConfig) ([]float64, error) {
	if cfg.CommandedMs != "" {
		return pulse.ParseCSVFloat64s(cfg.CommandedMs)
	}
	return tuning.CommandedMs, nil
}
