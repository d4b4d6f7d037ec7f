package pulse

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TuningConfig holds the pulse-extraction tuning parameters. Fields omitted
// from the JSON file retain their defaults, so partial configs are safe; the
// Get* methods carry the documented default for every field.
type TuningConfig struct {
	// Preprocessor params
	SmoothWindow *int     `json:"smooth_window,omitempty"`
	LoPercentile *float64 `json:"lo_percentile,omitempty"`
	HiPercentile *float64 `json:"hi_percentile,omitempty"`
	SwingEpsilon *float64 `json:"swing_epsilon,omitempty"`

	// Segmenter params
	ThresholdMode      *string  `json:"threshold_mode,omitempty"` // "midpoint" or "plateau"
	HysteresisFraction *float64 `json:"hysteresis_fraction,omitempty"`
	PlateauFraction    *float64 `json:"plateau_fraction,omitempty"`
	MinSegmentFrames   *int     `json:"min_segment_frames,omitempty"`

	// Consolidator params
	MergeGapFrames     *int     `json:"merge_gap_frames,omitempty"`
	MergeGapSeconds    *float64 `json:"merge_gap_seconds,omitempty"` // used when merge_gap_frames unset
	MinPeak            *float64 `json:"min_peak,omitempty"`
	MinAreaSeconds     *float64 `json:"min_area_seconds,omitempty"`
	WindowPolicy       *string  `json:"window_policy,omitempty"` // "longest" or "strongest"
	BoundaryGapSeconds *float64 `json:"boundary_gap_seconds,omitempty"`

	// Analyzer params
	PeakFractions        []float64 `json:"peak_fractions,omitempty"`
	BaselineWindowFrames *int      `json:"baseline_window_frames,omitempty"`
	BaselineMinFrames    *int      `json:"baseline_min_frames,omitempty"`

	// Ingestion params
	FallbackFrameRate *float64 `json:"fallback_frame_rate,omitempty"`

	// Commanded pulse durations in milliseconds, used only for calibration.
	CommandedMs []float64 `json:"commanded_ms,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset; every Get*
// method then returns its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The path must have
// a .json extension and the file must be under the max size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SmoothWindow != nil && *c.SmoothWindow < 0 {
		return fmt.Errorf("smooth_window must be non-negative, got %d", *c.SmoothWindow)
	}
	if c.LoPercentile != nil && (*c.LoPercentile <= 0 || *c.LoPercentile > 100) {
		return fmt.Errorf("lo_percentile must be in (0, 100], got %f", *c.LoPercentile)
	}
	if c.HiPercentile != nil && (*c.HiPercentile <= 0 || *c.HiPercentile > 100) {
		return fmt.Errorf("hi_percentile must be in (0, 100], got %f", *c.HiPercentile)
	}
	if c.ThresholdMode != nil {
		if _, err := ParseThresholdMode(*c.ThresholdMode); err != nil {
			return err
		}
	}
	if c.HysteresisFraction != nil && (*c.HysteresisFraction < 0 || *c.HysteresisFraction > 1) {
		return fmt.Errorf("hysteresis_fraction must be between 0 and 1, got %f", *c.HysteresisFraction)
	}
	if c.PlateauFraction != nil && (*c.PlateauFraction <= 0 || *c.PlateauFraction > 1) {
		return fmt.Errorf("plateau_fraction must be in (0, 1], got %f", *c.PlateauFraction)
	}
	if c.MinSegmentFrames != nil && *c.MinSegmentFrames < 1 {
		return fmt.Errorf("min_segment_frames must be at least 1, got %d", *c.MinSegmentFrames)
	}
	if c.MergeGapFrames != nil && *c.MergeGapFrames < 0 {
		return fmt.Errorf("merge_gap_frames must be non-negative, got %d", *c.MergeGapFrames)
	}
	if c.WindowPolicy != nil {
		if _, err := ParseSelectPolicy(*c.WindowPolicy); err != nil {
			return err
		}
	}
	for _, f := range c.PeakFractions {
		if f <= 0 || f > 1 {
			return fmt.Errorf("peak_fractions must be in (0, 1], got %f", f)
		}
	}
	if c.FallbackFrameRate != nil && *c.FallbackFrameRate <= 1 {
		return fmt.Errorf("fallback_frame_rate must be greater than 1, got %f", *c.FallbackFrameRate)
	}
	return nil
}

// GetSmoothWindow returns the smoothing window width or the default.
func (c *TuningConfig) GetSmoothWindow() int {
	if c.SmoothWindow == nil {
		return 5
	}
	return *c.SmoothWindow
}

// GetLoPercentile returns the low brightness percentile or the default.
func (c *TuningConfig) GetLoPercentile() float64 {
	if c.LoPercentile == nil {
		return 10
	}
	return *c.LoPercentile
}

// GetHiPercentile returns the high brightness percentile or the default.
func (c *TuningConfig) GetHiPercentile() float64 {
	if c.HiPercentile == nil {
		return 90
	}
	return *c.HiPercentile
}

// GetSwingEpsilon returns the degenerate-swing epsilon or the default.
func (c *TuningConfig) GetSwingEpsilon() float64 {
	if c.SwingEpsilon == nil {
		return 1e-3
	}
	return *c.SwingEpsilon
}

// GetThresholdMode returns the parsed threshold mode; plateau is the default
// so pulses register only while near fully open.
func (c *TuningConfig) GetThresholdMode() ThresholdMode {
	if c.ThresholdMode == nil {
		return ModePlateau
	}
	m, err := ParseThresholdMode(*c.ThresholdMode)
	if err != nil {
		return ModePlateau
	}
	return m
}

// GetHysteresisFraction returns the hysteresis band fraction. The default
// depends on the threshold mode: the plateau mode only needs a small band to
// ride out dips near the top, while the midpoint mode wants a wider one.
func (c *TuningConfig) GetHysteresisFraction() float64 {
	if c.HysteresisFraction != nil {
		return *c.HysteresisFraction
	}
	if c.GetThresholdMode() == ModePlateau {
		return 0.03
	}
	return 0.10
}

// GetPlateauFraction returns the plateau anchor fraction or the default.
func (c *TuningConfig) GetPlateauFraction() float64 {
	if c.PlateauFraction == nil {
		return 0.97
	}
	return *c.PlateauFraction
}

// GetMinSegmentFrames returns the minimum segment length or the default.
func (c *TuningConfig) GetMinSegmentFrames() int {
	if c.MinSegmentFrames == nil {
		return 3
	}
	return *c.MinSegmentFrames
}

// GetMergeGapFrames returns the merge gap in frames. When merge_gap_frames is
// unset the gap is derived from merge_gap_seconds (default 60ms) at the
// capture's frame rate.
func (c *TuningConfig) GetMergeGapFrames(frameRate float64) int {
	if c.MergeGapFrames != nil {
		return *c.MergeGapFrames
	}
	seconds := 0.06
	if c.MergeGapSeconds != nil {
		seconds = *c.MergeGapSeconds
	}
	return int(seconds * frameRate)
}

// GetMinPeak returns the strength filter's minimum peak or the default.
func (c *TuningConfig) GetMinPeak() float64 {
	if c.MinPeak == nil {
		return 10
	}
	return *c.MinPeak
}

// GetMinAreaSeconds returns the strength filter's minimum area or the default
// (5ms worth of full-scale metric).
func (c *TuningConfig) GetMinAreaSeconds() float64 {
	if c.MinAreaSeconds == nil {
		return 0.005
	}
	return *c.MinAreaSeconds
}

// GetWindowPolicy returns the parsed per-window selection policy; strongest
// is the default since amplitude noise dominates fragmented captures.
func (c *TuningConfig) GetWindowPolicy() SelectPolicy {
	if c.WindowPolicy == nil {
		return SelectStrongest
	}
	p, err := ParseSelectPolicy(*c.WindowPolicy)
	if err != nil {
		return SelectStrongest
	}
	return p
}

// GetBoundaryGapSeconds returns the pulse-window boundary gap or the default.
// Set this to roughly half the commanded inter-pulse gap.
func (c *TuningConfig) GetBoundaryGapSeconds() float64 {
	if c.BoundaryGapSeconds == nil {
		return 2.0
	}
	return *c.BoundaryGapSeconds
}

// GetPeakFractions returns the fractional thresholds for rise/fall timing or
// the default 10/50/90% set.
func (c *TuningConfig) GetPeakFractions() []float64 {
	if len(c.PeakFractions) == 0 {
		return []float64{0.10, 0.50, 0.90}
	}
	return c.PeakFractions
}

// GetBaselineWindowFrames returns the local-baseline window or the default.
func (c *TuningConfig) GetBaselineWindowFrames() int {
	if c.BaselineWindowFrames == nil {
		return 50
	}
	return *c.BaselineWindowFrames
}

// GetBaselineMinFrames returns the minimum frames required before a local
// baseline is used instead of the global low level.
func (c *TuningConfig) GetBaselineMinFrames() int {
	if c.BaselineMinFrames == nil {
		return 5
	}
	return *c.BaselineMinFrames
}

// GetFallbackFrameRate returns the frame rate substituted when the source
// reports a missing or invalid one.
func (c *TuningConfig) GetFallbackFrameRate() float64 {
	if c.FallbackFrameRate == nil {
		return 110.0
	}
	return *c.FallbackFrameRate
}
