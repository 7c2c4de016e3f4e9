package segmatch

import (
	"testing"

	"github.com/soocke/autogui/match"
	"github.com/soocke/autogui/match/prep"
)

// texturedBlock paints a bw x bh patch with a ramp (not a flat color — a
// uniform patch has zero variance, which the segmenter correctly rejects
// as TemplateTooSimple, spec §4.2) at (bx,by) over a uniform background.
func texturedBlock(screenW, screenH, bg, bx, by, bw, bh int) match.GrayGrid {
	pix := make([]uint8, screenW*screenH)
	for i := range pix {
		pix[i] = uint8(bg)
	}
	for y := by; y < by+bh; y++ {
		for x := bx; x < bx+bw; x++ {
			pix[y*screenW+x] = uint8(40 + ((x-bx)*5)%180 + ((y-by)*3)%40)
		}
	}
	return match.GrayGrid{W: screenW, H: screenH, Pix: pix}
}

func prepareSegmented(t *testing.T, tmpl match.GrayGrid, region match.Region) *prep.SegmentedData {
	t.Helper()
	prepared, err := prep.Prepare(tmpl, region, match.Segmented, prep.Options{})
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	return prepared.(*prep.SegmentedData)
}

// TestMatch_PlacedBlock is spec scenario S2 (adapted to a textured, not
// flat-color, patch — see texturedBlock doc comment): searching for a
// known sub-image in a synthesized background reports that offset as the
// top score.
func TestMatch_PlacedBlock(t *testing.T) {
	const screenW, screenH = 300, 300
	const bx, by, bw, bh = 137, 100, 40, 40
	screen := texturedBlock(screenW, screenH, 128, bx, by, bw, bh)
	tmpl := screen.Sub(bx, by, bw, bh)

	region := match.Region{X0: 0, Y0: 0, W: screenW, H: screenH}
	data := prepareSegmented(t, tmpl, region)

	results, err := Match(data, screen, 0.95)
	if err != nil {
		t.Fatalf("Match error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Match returned no results, want top match at the placed offset")
	}
	top := results[0]
	if top.X != bx || top.Y != by {
		t.Errorf("top match = (%d,%d), want (%d,%d)", top.X, top.Y, bx, by)
	}
	if top.Score < 0.99 {
		t.Errorf("top score = %v, want >= 0.99", top.Score)
	}
}

// TestMatch_NotFound is spec scenario S3: the template does not appear in
// the screen; Match should return an empty (not erroring) result.
func TestMatch_NotFound(t *testing.T) {
	const screenW, screenH = 300, 300
	screen := texturedBlock(screenW, screenH, 128, 137, 100, 40, 40)

	// Build a template textured differently so it doesn't correlate with
	// anything actually present in the screen.
	absentPix := make([]uint8, 40*40)
	for i := range absentPix {
		absentPix[i] = uint8(200 - (i%40)*3)
	}
	tmpl := match.GrayGrid{W: 40, H: 40, Pix: absentPix}

	region := match.Region{X0: 0, Y0: 0, W: screenW, H: screenH}
	data := prepareSegmented(t, tmpl, region)

	results, err := Match(data, screen, 0.9)
	if err != nil {
		t.Fatalf("Match error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Match returned %d results, want 0: %+v", len(results), results)
	}
}

// TestMatch_MultiOccurrence is spec scenario S4: two copies of the same
// template in the screen should both appear among the results, with the
// top score within 1e-3 of 1.0.
func TestMatch_MultiOccurrence(t *testing.T) {
	const screenW, screenH = 300, 300
	const tw, th = 20, 20
	pix := make([]uint8, screenW*screenH)
	ramp := func(x, y int) uint8 { return uint8((x*13 + y*7) % 256) }

	place := func(ox, oy int) {
		for y := 0; y < th; y++ {
			for x := 0; x < tw; x++ {
				pix[(oy+y)*screenW+ox+x] = ramp(x, y)
			}
		}
	}
	place(10, 10)
	place(200, 150)
	screen := match.GrayGrid{W: screenW, H: screenH, Pix: pix}

	tmplPix := make([]uint8, tw*th)
	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			tmplPix[y*tw+x] = ramp(x, y)
		}
	}
	tmpl := match.GrayGrid{W: tw, H: th, Pix: tmplPix}

	region := match.Region{X0: 0, Y0: 0, W: screenW, H: screenH}
	data := prepareSegmented(t, tmpl, region)

	results, err := Match(data, screen, 0.9)
	if err != nil {
		t.Fatalf("Match error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Match returned no results, want both placed offsets")
	}
	if top := results[0].Score; top < 1.0-1e-3 {
		t.Errorf("top score = %v, want within 1e-3 of 1.0", top)
	}

	want := map[[2]int]bool{{10, 10}: false, {200, 150}: false}
	for _, r := range results {
		if _, ok := want[[2]int{r.X, r.Y}]; ok {
			want[[2]int{r.X, r.Y}] = true
		}
	}
	for off, found := range want {
		if !found {
			t.Errorf("expected offset %v among results, results=%+v", off, results)
		}
	}
}

// TestMatch_RejectsScreenSmallerThanTemplate checks the boundary guard.
func TestMatch_RejectsScreenSmallerThanTemplate(t *testing.T) {
	small := match.GrayGrid{W: 10, H: 10, Pix: make([]uint8, 100)}
	data := &prep.SegmentedData{TmplW: 20, TmplH: 20}
	_, err := Match(data, small, 0.9)
	if err == nil {
		t.Fatal("Match with screen smaller than template: want error, got nil")
	}
}
