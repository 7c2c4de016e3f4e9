// Package segment implements the binary quad-tree decomposition of a
// template into constant-mean rectangular tiles ("segments"), and the
// merge pass that collapses adjacent equal-mean tiles.
//
// Grounded on original_source/src/normalized_x_corr/fast_segment_x_corr.rs
// (divide_and_conquer / create_picture_segments / merge_picture_segments),
// reworked into idiomatic Go: explicit error returns instead of panics,
// slices instead of Vec<Segment>, and the teacher's worker-pool idiom
// (match/segmatch) consumes the resulting slices directly.
package segment

import (
	"errors"
	"math"
	"sort"

	"github.com/soocke/autogui/match"
)

// ErrTemplateTooSimple is returned when a template segments down to a
// single tile (uniform intensity) after merging.
var ErrTemplateTooSimple = match.ErrTemplateTooSimple

// Segment is an axis-aligned rectangle over which the template is
// approximated by a single mean intensity.
type Segment struct {
	X, Y, W, H int
	Mean       float32
}

func (s Segment) area() int { return s.W * s.H }
func (s Segment) zero() bool { return s.W == 0 || s.H == 0 }

// Result bundles a merged segment list with the derived fields spec §3
// requires of a SegmentedData pass (fast or slow).
type Result struct {
	Segments     []Segment
	SSD          float32 // Σ area(S) * (S.mean - Mean)^2 over the merged segment list
	Mean         float32 // area-weighted mean of segment means == true template mean
	ExpectedCorr float32 // Pearson correlation of the segmented approximation vs. the true template
}

// Pass selects which of the two threshold ladders (fast/coarse or
// slow/fine) the decomposition should satisfy.
type Pass int

const (
	Fast Pass = iota
	Slow
)

// defaults returns the initial multiplier k and target expected correlation
// for a pass, per spec §4.2. An explicit override (from TemplatePrep's
// opts.threshold) replaces the initial k for either pass.
func (p Pass) defaults(override float32) (startK, targetCorr float64) {
	switch p {
	case Fast:
		startK = 0.99
		targetCorr = -0.95
	default:
		startK = 0.85
		targetCorr = 0.99
	}
	if override > 0 {
		startK = float64(override)
	}
	return startK, targetCorr
}

// Build runs the threshold retry loop (spec §4.2) for one pass over a
// grayscale template, returning the merged segments and their derived
// statistics. overrideK, if > 0, replaces the pass's initial k multiplier.
func Build(tmpl match.GrayGrid, pass Pass, overrideK float32) (Result, error) {
	w, h := tmpl.W, tmpl.H
	if w <= 0 || h <= 0 {
		return Result{}, errors.New("segment: empty template")
	}

	meanTmpl, templateStd := templateStats(tmpl)
	startK, targetCorr := pass.defaults(overrideK)

	var segs []Segment
	var corr float32
	k := startK
	for {
		segs = segs[:0]
		segs = divideAndConquer(segs, tmpl, 0, 0, w, h, k*templateStd)
		segs = merge(segs)

		corr = expectedCorrelation(tmpl, segs, meanTmpl)
		if float64(corr) >= targetCorr {
			break
		}
		k -= 0.05
		if k <= 0.1 {
			break
		}
	}

	if len(segs) <= 1 {
		return Result{}, ErrTemplateTooSimple
	}

	segMean := segmentsMean(segs, w*h)
	ssd := segmentsSSD(segs, segMean)

	return Result{
		Segments:     segs,
		SSD:          ssd,
		Mean:         segMean,
		ExpectedCorr: clampCorr(corr),
	}, nil
}

func clampCorr(c float32) float32 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// templateStats returns the template's mean and population standard
// deviation over all pixels.
func templateStats(tmpl match.GrayGrid) (mean, std float64) {
	n := float64(tmpl.W * tmpl.H)
	var sum, sumSq float64
	for _, p := range tmpl.Pix {
		v := float64(p)
		sum += v
		sumSq += v * v
	}
	mean = sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	std = math.Sqrt(variance)
	return mean, std
}

// divideAndConquer recursively splits the w×h tile at (x,y) within tmpl
// until each tile's standard deviation is at or below threshold (or the
// tile is 1x1), appending leaf Segments to segs.
//
// Split axis: the wider (or equal) dimension is halved along x, otherwise
// along y (spec's "width >= height" rule); the left/top child receives the
// extra pixel on an odd split, per spec §9's reproducibility decision.
func divideAndConquer(segs []Segment, tmpl match.GrayGrid, x, y, w, h int, threshold float64) []Segment {
	mean, std := tileStats(tmpl, x, y, w, h)

	if (w == 1 && h == 1) || std <= threshold {
		return append(segs, Segment{X: x, Y: y, W: w, H: h, Mean: float32(mean)})
	}

	if w >= h {
		left := (w + 1) / 2 // left/top child gets the extra pixel on odd splits
		right := w - left
		segs = divideAndConquer(segs, tmpl, x, y, left, h, threshold)
		segs = divideAndConquer(segs, tmpl, x+left, y, right, h, threshold)
		return segs
	}
	top := (h + 1) / 2
	bottom := h - top
	segs = divideAndConquer(segs, tmpl, x, y, w, top, threshold)
	segs = divideAndConquer(segs, tmpl, x, y+top, w, bottom, threshold)
	return segs
}

func tileStats(tmpl match.GrayGrid, x, y, w, h int) (mean, std float64) {
	n := float64(w * h)
	var sum float64
	for row := 0; row < h; row++ {
		off := (y+row)*tmpl.W + x
		for col := 0; col < w; col++ {
			sum += float64(tmpl.Pix[off+col])
		}
	}
	mean = sum / n
	var sqDev float64
	for row := 0; row < h; row++ {
		off := (y+row)*tmpl.W + x
		for col := 0; col < w; col++ {
			d := float64(tmpl.Pix[off+col]) - mean
			sqDev += d * d
		}
	}
	variance := sqDev / n
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// merge repeatedly applies the vertical-then-horizontal merge sweeps until
// a full pass makes no change, then drops zero-sized segments.
func merge(segs []Segment) []Segment {
	for {
		changed := mergeVertical(segs)
		changed = mergeHorizontal(segs) || changed
		if !changed {
			break
		}
	}
	out := segs[:0]
	for _, s := range segs {
		if !s.zero() {
			out = append(out, s)
		}
	}
	return out
}

// mergeVertical sorts by (x,y) and absorbs a neighbour directly below a
// segment when their x, width and mean all match.
func mergeVertical(segs []Segment) bool {
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].X != segs[j].X {
			return segs[i].X < segs[j].X
		}
		return segs[i].Y < segs[j].Y
	})
	changed := false
	for i := range segs {
		cur := &segs[i]
		if cur.zero() {
			continue
		}
		for j := i + 1; j < len(segs); j++ {
			next := &segs[j]
			if next.X != cur.X {
				break
			}
			if next.zero() {
				continue
			}
			if cur.Y+cur.H < next.Y {
				break
			}
			if cur.W == next.W && cur.Mean == next.Mean && cur.Y+cur.H == next.Y {
				cur.H += next.H
				next.W, next.H = 0, 0
				changed = true
			}
		}
	}
	return changed
}

// mergeHorizontal sorts by (y,x) and absorbs a neighbour directly to the
// right of a segment when their y, height and mean all match.
func mergeHorizontal(segs []Segment) bool {
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].Y != segs[j].Y {
			return segs[i].Y < segs[j].Y
		}
		return segs[i].X < segs[j].X
	})
	changed := false
	for i := range segs {
		cur := &segs[i]
		if cur.zero() {
			continue
		}
		for j := i + 1; j < len(segs); j++ {
			next := &segs[j]
			if next.Y != cur.Y {
				break
			}
			if next.zero() {
				continue
			}
			if cur.X+cur.W < next.X {
				break
			}
			if cur.H == next.H && cur.Mean == next.Mean && cur.X+cur.W == next.X {
				cur.W += next.W
				next.W, next.H = 0, 0
				changed = true
			}
		}
	}
	return changed
}

// segmentsMean returns the area-weighted mean of segment means, which by
// construction equals the true template mean (spec §8 invariant 2).
func segmentsMean(segs []Segment, totalArea int) float32 {
	var sum float64
	for _, s := range segs {
		sum += float64(s.Mean) * float64(s.area())
	}
	return float32(sum / float64(totalArea))
}

// segmentsSSD is the area-weighted sum of squared deviations of segment
// means from the segment mean: the squared deviation summed over every pixel
// of the piecewise-constant approximation. This is the template-side factor
// that matches the matchers' numerator, so a search at the template's own
// position scores exactly ExpectedCorr.
func segmentsSSD(segs []Segment, segMean float32) float32 {
	var sum float64
	for _, s := range segs {
		d := float64(s.Mean) - float64(segMean)
		sum += d * d * float64(s.area())
	}
	return float32(sum)
}

// expectedCorrelation computes the Pearson correlation between the
// segmented (piecewise-constant) approximation of tmpl and tmpl itself,
// evaluated over every pixel.
func expectedCorrelation(tmpl match.GrayGrid, segs []Segment, meanTmpl float64) float32 {
	segMean := segmentsMean(segs, tmpl.W*tmpl.H)
	var numerator, denomTmpl, denomSeg float64
	for _, s := range segs {
		segDiff := float64(s.Mean) - float64(segMean)
		for row := 0; row < s.H; row++ {
			off := (s.Y+row)*tmpl.W + s.X
			for col := 0; col < s.W; col++ {
				tmplDiff := float64(tmpl.Pix[off+col]) - meanTmpl
				numerator += tmplDiff * segDiff
				denomTmpl += tmplDiff * tmplDiff
				denomSeg += segDiff * segDiff
			}
		}
	}
	denom := math.Sqrt(denomTmpl * denomSeg)
	if denom == 0 {
		return 0
	}
	return float32(numerator / denom)
}
