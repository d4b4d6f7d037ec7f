// Package pulsedb persists extraction runs, per-pulse statistics and
// calibration fits to a local sqlite database so captures can be compared
// across rig and exposure changes.
package pulsedb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/shutter.report/internal/pulse"
)

type DB struct {
	*sql.DB
}

// New opens (creating if needed) the run store at the given path.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id            TEXT PRIMARY KEY,
			source            TEXT,
			frame_rate        DOUBLE,
			frame_count       BIGINT,
			level_lo          DOUBLE,
			level_hi          DOUBLE,
			swing             DOUBLE,
			raw_segments      BIGINT,
			pulse_count       BIGINT,
			degenerate        BOOLEAN,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS pulses (
			run_id            TEXT,
			pulse_index       BIGINT,
			start_frame       BIGINT,
			end_frame         BIGINT,
			duration_ms       DOUBLE,
			baseline          DOUBLE,
			peak_bs           DOUBLE,
			peak_frame        BIGINT,
			auc_metric_s      DOUBLE,
			PRIMARY KEY (run_id, pulse_index),
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
		CREATE TABLE IF NOT EXISTS calibrations (
			run_id            TEXT PRIMARY KEY,
			slope             DOUBLE,
			intercept         DOUBLE,
			loss_ms           DOUBLE,
			points            BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// RecordRun persists a pipeline result and returns the new run id.
func (db *DB) RecordRun(res *pulse.Result, source string) (string, error) {
	runID := uuid.NewString()

	tx, err := db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(run_id, source, frame_rate, frame_count, level_lo, level_hi, swing, raw_segments, pulse_count, degenerate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, source, res.FrameRate, len(res.Raw),
		res.Levels.Lo, res.Levels.Hi, res.Levels.Swing(),
		len(res.RawSegments), len(res.Pulses), res.Degenerate)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, p := range res.Pulses {
		_, err = tx.Exec(`INSERT INTO pulses
			(run_id, pulse_index, start_frame, end_frame, duration_ms, baseline, peak_bs, peak_frame, auc_metric_s)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, p.Index, p.Segment.Start, p.Segment.End,
			p.DurationMs(res.FrameRate), p.Baseline, p.Peak, p.PeakFrame, p.AUCSeconds)
		if err != nil {
			return "", fmt.Errorf("failed to insert pulse %d: %w", p.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

// RecordCalibration persists the fit for a run.
func (db *DB) RecordCalibration(runID string, cal pulse.Calibration) error {
	_, err := db.Exec(`INSERT INTO calibrations (run_id, slope, intercept, loss_ms, points)
		VALUES (?, ?, ?, ?, ?)`,
		runID, cal.Slope, cal.Intercept, cal.Loss(), cal.Points)
	if err != nil {
		return fmt.Errorf("failed to insert calibration: %w", err)
	}
	return nil
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID      string
	Source     string
	FrameRate  float64
	FrameCount int
	PulseCount int
	Degenerate bool
	Timestamp  time.Time
}

// LatestRuns returns the most recent runs, newest first.
func (db *DB) LatestRuns(limit int) ([]RunSummary, error) {
	rows, err := db.Query(`SELECT run_id, source, frame_rate, frame_count, pulse_count, degenerate, timestamp
		FROM runs ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Source, &r.FrameRate, &r.FrameCount, &r.PulseCount, &r.Degenerate, &r.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestCalibration returns the most recently recorded fit, or nil when no
// calibration has been stored yet.
func (db *DB) LatestCalibration() (*pulse.Calibration, error) {
	row := db.QueryRow(`SELECT slope, intercept, points FROM calibrations ORDER BY timestamp DESC LIMIT 1`)
	var cal pulse.Calibration
	if err := row.Scan(&cal.Slope, &cal.Intercept, &cal.Points); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &cal, nil
}
