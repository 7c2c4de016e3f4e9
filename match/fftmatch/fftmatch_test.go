package fftmatch

import (
	"testing"

	"github.com/soocke/autogui/match"
	"github.com/soocke/autogui/match/prep"
)

// TestMatch_IdentityFFT is spec scenario S1: template = the 64x64 top-left
// corner of a 256x256 image where every pixel is (x+y) mod 256. Searching
// that image with FFT at precision 0.99 must report (0,0) with score
// >= 0.9999.
func TestMatch_IdentityFFT(t *testing.T) {
	const screenW, screenH = 256, 256
	screenPix := make([]uint8, screenW*screenH)
	for y := 0; y < screenH; y++ {
		for x := 0; x < screenW; x++ {
			screenPix[y*screenW+x] = uint8((x + y) % 256)
		}
	}
	screen := match.GrayGrid{W: screenW, H: screenH, Pix: screenPix}

	const tw, th = 64, 64
	tmpl := screen.Sub(0, 0, tw, th)

	region := match.Region{X0: 0, Y0: 0, W: screenW, H: screenH}
	prepared, err := prep.Prepare(tmpl, region, match.FFT, prep.Options{})
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	data := prepared.(*prep.FFTData)

	results, err := Match(data, screen, 0.99)
	if err != nil {
		t.Fatalf("Match error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Match returned no results, want top match at (0,0)")
	}
	top := results[0]
	if top.X != 0 || top.Y != 0 {
		t.Errorf("top match = (%d,%d), want (0,0)", top.X, top.Y)
	}
	if top.Score < 0.9999 {
		t.Errorf("top score = %v, want >= 0.9999", top.Score)
	}
}

// TestMatch_PlacedBlock exercises FFT against a textured patch placed at a
// known offset in an otherwise uniform background (spec invariant 5). The
// patch carries a ramp rather than a flat color: a perfectly uniform patch
// has zero variance and is not a meaningful NCC target (see segment
// package's TemplateTooSimple rejection for the flat-color case, spec §4.2).
func TestMatch_PlacedBlock(t *testing.T) {
	const screenW, screenH = 200, 200
	screenPix := make([]uint8, screenW*screenH)
	for i := range screenPix {
		screenPix[i] = 128
	}
	const bx, by, bw, bh = 70, 55, 30, 30
	for y := by; y < by+bh; y++ {
		for x := bx; x < bx+bw; x++ {
			screenPix[y*screenW+x] = uint8(150 + (x-bx)*2 + (y-by))
		}
	}
	screen := match.GrayGrid{W: screenW, H: screenH, Pix: screenPix}
	tmpl := screen.Sub(bx, by, bw, bh)

	region := match.Region{X0: 0, Y0: 0, W: screenW, H: screenH}
	prepared, err := prep.Prepare(tmpl, region, match.FFT, prep.Options{})
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	data := prepared.(*prep.FFTData)

	results, err := Match(data, screen, 0.95)
	if err != nil {
		t.Fatalf("Match error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Match returned no results")
	}
	top := results[0]
	if top.X != bx || top.Y != by {
		t.Errorf("top match = (%d,%d), want (%d,%d)", top.X, top.Y, bx, by)
	}
}
