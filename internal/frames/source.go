// Package frames supplies ordered image frames and reduces each frame to a
// single scalar brightness metric. The pulse pipeline only ever sees the
// metric series; the source and reducer are swappable collaborators.
package frames

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "image/jpeg"
	_ "image/png"
)

// Source is a finite, ordered pull of frames. Next returns io.EOF when the
// sequence is exhausted. NominalFrameRate may return NaN, zero or a value
// <= 1 when the capture metadata is missing or invalid; callers must
// substitute a fallback.
type Source interface {
	NominalFrameRate() float64
	Next() (image.Image, error)
	Close() error
}

// NominalOrFallback resolves a source's reported frame rate. The second
// return is true when the fallback was substituted.
func NominalOrFallback(rate, fallback float64) (float64, bool) {
	if math.IsNaN(rate) || rate <= 1 {
		return fallback, true
	}
	return rate, false
}

// DirSource reads frames from a folder of image files (PNG or JPEG),
// lexically sorted so zero-padded frame numbering plays back in order.
type DirSource struct {
	paths []string
	idx   int
	rate  float64
}

// frameRateSidecar is the optional per-capture file holding the recorder's
// frame rate, one float on the first line.
const frameRateSidecar = "fps.txt"

// OpenDir opens a frame folder. When rate is NaN the fps.txt sidecar is
// consulted; a missing or malformed sidecar leaves the rate NaN for the
// caller's fallback logic.
func OpenDir(dir string, rate float64) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame folder: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frame images found in %s", dir)
	}
	sort.Strings(paths)

	if math.IsNaN(rate) {
		rate = readSidecarRate(filepath.Join(dir, frameRateSidecar))
	}
	return &DirSource{paths: paths, rate: rate}, nil
}

func readSidecarRate(path string) float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return math.NaN()
	}
	line := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
	v, err := strconv.ParseFloat(line, 64)
	if err != nil {
		log.Printf("ignoring malformed %s: %v", path, err)
		return math.NaN()
	}
	return v
}

// NominalFrameRate returns the rate from the constructor or sidecar; NaN
// when neither was available.
func (s *DirSource) NominalFrameRate() float64 { return s.rate }

// Len is the number of frame files discovered.
func (s *DirSource) Len() int { return len(s.paths) }

// Next decodes and returns the next frame.
func (s *DirSource) Next() (image.Image, error) {
	if s.idx >= len(s.paths) {
		return nil, io.EOF
	}
	path := s.paths[s.idx]
	s.idx++

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", path, err)
	}
	return img, nil
}

func (s *DirSource) Close() error { return nil }

// ReadSeriesCSV reads a precomputed metric series from a CSV file: one row
// per frame, metric in the last column. A non-numeric first row is treated
// as a header and skipped. Used to re-analyze a capture without re-decoding
// frames, and for fixture-driven development.
func ReadSeriesCSV(r io.Reader) ([]float64, error) {
	var series []float64
	scan := bufio.NewScanner(r)
	line := 0
	for scan.Scan() {
		line++
		text := strings.TrimSpace(scan.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, ",")
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[len(fields)-1]), 64)
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: invalid metric value: %w", line, err)
		}
		series = append(series, v)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return series, nil
}
