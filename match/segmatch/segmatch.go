// Package segmatch implements the CPU two-pass segmented NCC matcher:
// a coarse "fast" pass over high-variance tiles filters candidate offsets,
// a "slow" pass over fine tiles verifies them.
//
// Grounded on original_source/src/normalized_x_corr/fast_segment_x_corr.rs
// (fast_correlation_calculation) for the algorithm, and on
// soockee-pixel-bot-go's domain/capture/multi_scale.go
// (MultiScaleMatchParallel) for the worker-pool fan-out idiom — repurposed
// here to parallelize single-scale offsets instead of scale factors, since
// multi-scale search is a spec Non-goal.
package segmatch

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/soocke/autogui/match"
	"github.com/soocke/autogui/match/integral"
	"github.com/soocke/autogui/match/prep"
	"github.com/soocke/autogui/match/segment"
)

// eps guards against floating error exactly at the threshold (spec §4.5).
const eps = 1e-4

const sentinelScore = -100

// Match runs the CPU segmented matcher over a screen region against a
// prepared segmented template, fanning the offset grid out across a
// worker pool sized to the host. Returns offsets whose slow-pass score
// clears precision*SlowExpectedCorr-eps, sorted score-descending.
func Match(data *prep.SegmentedData, screen match.GrayGrid, precision float32) ([]match.Point, error) {
	w, h := data.TmplW, data.TmplH
	W, H := screen.W, screen.H
	if W < w || H < h {
		return nil, match.ErrRegionOutOfBounds
	}

	integ := integral.Build(W, H, screen.Pix)
	area := float64(w * h)

	fastThreshold := float64(precision)*float64(data.FastExpectedCorr) - eps
	slowThreshold := float64(precision)*float64(data.SlowExpectedCorr) - eps

	rows := H - h + 1
	workers := runtime.NumCPU()
	if workers > rows {
		workers = rows
	}
	if workers < 1 {
		workers = 1
	}

	perWorker := make([][]match.Point, workers)
	var wg sync.WaitGroup
	rowsPerWorker := (rows + workers - 1) / workers

	for wi := 0; wi < workers; wi++ {
		y0 := wi * rowsPerWorker
		y1 := y0 + rowsPerWorker
		if y1 > rows {
			y1 = rows
		}
		if y0 >= y1 {
			continue
		}
		wg.Add(1)
		go func(wi, y0, y1 int) {
			defer wg.Done()
			var local []match.Point
			for y := y0; y < y1; y++ {
				for x := 0; x <= W-w; x++ {
					sumImage := float64(integ.SumRect(x, y, w, h))
					meanImage := sumImage / area
					imageSSD := float64(integ.SumSqRect(x, y, w, h)) - sumImage*sumImage/area

					fastScore := correlation(integ, data.FastSegments, x, y, meanImage, imageSSD, float64(data.FastSSD), float64(data.FastMean))
					if fastScore > 1.1 || math.IsNaN(fastScore) {
						continue
					}
					if fastScore < fastThreshold {
						continue
					}

					slowScore := correlation(integ, data.SlowSegments, x, y, meanImage, imageSSD, float64(data.SlowSSD), float64(data.SlowMean))
					if slowScore > 1.1 || math.IsNaN(slowScore) {
						continue
					}
					if slowScore < slowThreshold {
						continue
					}
					local = append(local, match.Point{X: x, Y: y, Score: float32(slowScore)})
				}
			}
			perWorker[wi] = local
		}(wi, y0, y1)
	}
	wg.Wait()

	var results []match.Point
	for _, l := range perWorker {
		results = append(results, l...)
	}
	sort.Sort(match.ByScoreDesc(results))
	return results, nil
}

// correlation evaluates the segment-domain NCC numerator/denominator
// identity at one offset for one segment set (fast or slow), per spec
// §4.5:
//
//	num = Σ_k (sum_rect(image tile_k) - meanImage*area_k) * (segMean_k - segsMean)
//	den = sqrt(imageSSD * segsSSD)
func correlation(integ *integral.Table, segs []segment.Segment, x, y int, meanImage, imageSSD, segsSSD, segsMean float64) float64 {
	var numerator float64
	for _, s := range segs {
		tileSum := float64(integ.SumRect(x+s.X, y+s.Y, s.W, s.H))
		area := float64(s.W * s.H)
		numerator += (tileSum - meanImage*area) * (float64(s.Mean) - segsMean)
	}
	denom := math.Sqrt(imageSSD * segsSSD)
	if denom <= 0 {
		return -1
	}
	score := numerator / denom
	if score > 1.1 || math.IsNaN(score) {
		return sentinelScore
	}
	return score
}
