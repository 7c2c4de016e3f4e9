package segment

import (
	"errors"
	"math"
	"testing"

	"github.com/soocke/autogui/match"
)

// blockTemplate builds a w x h grid that's `lo` everywhere except for an
// rx,ry,rw,rh rectangle of `hi`.
func blockTemplate(w, h int, lo, hi uint8, rx, ry, rw, rh int) match.GrayGrid {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = lo
	}
	for y := ry; y < ry+rh; y++ {
		for x := rx; x < rx+rw; x++ {
			pix[y*w+x] = hi
		}
	}
	return match.GrayGrid{W: w, H: h, Pix: pix}
}

func uniformTemplate(w, h int, v uint8) match.GrayGrid {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = v
	}
	return match.GrayGrid{W: w, H: h, Pix: pix}
}

func TestBuild_UniformTemplateIsTooSimple(t *testing.T) {
	tmpl := uniformTemplate(30, 30, 77)
	_, err := Build(tmpl, Slow, 0)
	if !errors.Is(err, ErrTemplateTooSimple) {
		t.Fatalf("Build(uniform) error = %v, want ErrTemplateTooSimple", err)
	}
}

func TestBuild_SegmentAreasSumToTemplateArea(t *testing.T) {
	tmpl := blockTemplate(64, 48, 40, 220, 10, 8, 20, 15)
	for _, pass := range []Pass{Fast, Slow} {
		res, err := Build(tmpl, pass, 0)
		if err != nil {
			t.Fatalf("Build(pass=%v) error = %v", pass, err)
		}
		total := 0
		for _, s := range res.Segments {
			if s.W <= 0 || s.H <= 0 {
				t.Fatalf("pass=%v: zero-area segment %+v", pass, s)
			}
			total += s.W * s.H
		}
		if want := tmpl.W * tmpl.H; total != want {
			t.Errorf("pass=%v: segment area sum = %d, want %d", pass, total, want)
		}
	}
}

func TestBuild_SegmentsMeanMatchesTrueMean(t *testing.T) {
	tmpl := blockTemplate(64, 48, 40, 220, 10, 8, 20, 15)
	var sum float64
	for _, p := range tmpl.Pix {
		sum += float64(p)
	}
	trueMean := sum / float64(tmpl.W*tmpl.H)

	res, err := Build(tmpl, Slow, 0)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if diff := math.Abs(float64(res.Mean) - trueMean); diff > 1e-5 {
		t.Errorf("segments mean = %v, want %v (diff %v)", res.Mean, trueMean, diff)
	}
}

func TestBuild_ExpectedCorrInRangeAndOrdered(t *testing.T) {
	tmpl := blockTemplate(64, 48, 40, 220, 10, 8, 20, 15)
	fast, err := Build(tmpl, Fast, 0)
	if err != nil {
		t.Fatalf("fast Build error: %v", err)
	}
	slow, err := Build(tmpl, Slow, 0)
	if err != nil {
		t.Fatalf("slow Build error: %v", err)
	}
	for _, c := range []float32{fast.ExpectedCorr, slow.ExpectedCorr} {
		if c < 0 || c > 1 {
			t.Errorf("expected_corr out of [0,1]: %v", c)
		}
	}
	if slow.ExpectedCorr < fast.ExpectedCorr {
		t.Errorf("slow.ExpectedCorr (%v) < fast.ExpectedCorr (%v)", slow.ExpectedCorr, fast.ExpectedCorr)
	}
}

func TestMerge_CollapsesAdjacentEqualMeanTiles(t *testing.T) {
	// Two side-by-side 1x4 leaves with the same mean should merge into one
	// 2x4 segment by the horizontal sweep.
	segs := []Segment{
		{X: 0, Y: 0, W: 1, H: 4, Mean: 100},
		{X: 1, Y: 0, W: 1, H: 4, Mean: 100},
	}
	merged := merge(segs)
	if len(merged) != 1 {
		t.Fatalf("merge() = %d segments, want 1: %+v", len(merged), merged)
	}
	if merged[0].W != 2 || merged[0].H != 4 {
		t.Errorf("merged segment = %+v, want {W:2 H:4}", merged[0])
	}
}

func TestBuild_1x1TemplateSegmentsAsSingleTile(t *testing.T) {
	tmpl := match.GrayGrid{W: 1, H: 1, Pix: []uint8{200}}
	_, err := Build(tmpl, Fast, 0)
	if !errors.Is(err, ErrTemplateTooSimple) {
		t.Fatalf("Build(1x1) error = %v, want ErrTemplateTooSimple (a single tile is degenerate)", err)
	}
}
