package frames

import (
	"fmt"
	"image"
	"io"
	"sort"
	"sync"

	"github.com/montanaflynn/stats"
)

// Reducer converts one frame to one scalar brightness value; higher means
// more open / more light. The exact formula is swappable and is not part of
// the pipeline's contract.
type Reducer interface {
	Reduce(img image.Image) float64
}

// StarMetric is robust for a star-like point source anywhere in the frame:
// mean of the top-K brightest pixels minus the median background. K should
// roughly cover the blob (a ~20px blob works well with 80-250).
type StarMetric struct {
	TopK int
}

func (m StarMetric) Reduce(img image.Image) float64 {
	pixels := grayValues(img)
	if len(pixels) == 0 {
		return 0
	}
	med, _ := stats.Median(pixels)

	k := m.TopK
	if k < 1 {
		k = 1
	}
	if k > len(pixels) {
		k = len(pixels)
	}
	sort.Float64s(pixels)
	top := pixels[len(pixels)-k:]
	var sum float64
	for _, v := range top {
		sum += v
	}
	return sum/float64(k) - med
}

// MeanMetric is the plain frame mean, adequate when the light source fills
// most of the frame.
type MeanMetric struct{}

func (MeanMetric) Reduce(img image.Image) float64 {
	pixels := grayValues(img)
	if len(pixels) == 0 {
		return 0
	}
	var sum float64
	for _, v := range pixels {
		sum += v
	}
	return sum / float64(len(pixels))
}

// grayValues flattens a frame to 8-bit luminance values. Gray images are
// read directly; everything else goes through the standard luma conversion.
func grayValues(img image.Image) []float64 {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}
	out := make([]float64, 0, b.Dx()*b.Dy())

	if g, ok := img.(*image.Gray); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := g.Pix[(y-b.Min.Y)*g.Stride : (y-b.Min.Y)*g.Stride+b.Dx()]
			for _, p := range row {
				out = append(out, float64(p))
			}
		}
		return out
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma, scaled from 16-bit channels to 8-bit
			luma := (299*float64(r) + 587*float64(g) + 114*float64(bl)) / 1000 / 257
			out = append(out, luma)
		}
	}
	return out
}

// Collect drains the source and reduces every frame to its metric, in frame
// order. The source is closed before returning on all paths.
func Collect(src Source, red Reducer) ([]float64, error) {
	defer src.Close()

	var series []float64
	for {
		img, err := src.Next()
		if err == io.EOF {
			return series, nil
		}
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", len(series), err)
		}
		series = append(series, red.Reduce(img))
	}
}

// CollectParallel is Collect with the per-frame reduction fanned out over
// workers. Each frame's metric is independent, so only decode order matters:
// results land at their frame index and the returned series is identical to
// the sequential one.
func CollectParallel(src Source, red Reducer, workers int) ([]float64, error) {
	if workers <= 1 {
		return Collect(src, red)
	}
	defer src.Close()

	type job struct {
		idx int
		img image.Image
	}
	jobs := make(chan job, workers)

	var mu sync.Mutex
	series := make([]float64, 0, 1024)
	setMetric := func(idx int, v float64) {
		mu.Lock()
		defer mu.Unlock()
		for len(series) <= idx {
			series = append(series, 0)
		}
		series[idx] = v
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				setMetric(j.idx, red.Reduce(j.img))
			}
		}()
	}

	var readErr error
	n := 0
	for {
		img, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = fmt.Errorf("frame %d: %w", n, err)
			break
		}
		jobs <- job{idx: n, img: img}
		n++
	}
	close(jobs)
	wg.Wait()

	if readErr != nil {
		return nil, readErr
	}
	return series[:n], nil
}
