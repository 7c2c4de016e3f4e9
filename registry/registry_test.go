package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/soocke/autogui/config"
	"github.com/soocke/autogui/internal/diag"
	"github.com/soocke/autogui/match"
	"github.com/soocke/autogui/match/prep"
)

// fakeCapturer crops every GrabGray request out of one fixed grayscale grid,
// the way a real Capturer crops to the NamedEntry's Region; the tests search
// the whole screen, so x0/y0 are always 0 in practice.
type fakeCapturer struct {
	grid match.GrayGrid
	w, h int
}

func (f *fakeCapturer) Size() (int, int) { return f.w, f.h }

func (f *fakeCapturer) GrabGray(x0, y0, w, h int) (match.GrayGrid, error) {
	return f.grid.Sub(x0, y0, w, h), nil
}

func (f *fakeCapturer) ReleaseGray(match.GrayGrid) {}

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

func newTestRegistry(cap *fakeCapturer, cfg *config.Config) *Registry {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return New(cap, cfg, diag.New(nil, true), nil)
}

func TestRegistry_PrepareDefaultAndFind(t *testing.T) {
	const screenW, screenH = 300, 300
	const bx, by, bw, bh = 137, 80, 40, 40
	screen := texturedBlock(screenW, screenH, 128, bx, by, bw, bh)
	tmpl := screen.Sub(bx, by, bw, bh)

	cap := &fakeCapturer{grid: screen, w: screenW, h: screenH}
	reg := newTestRegistry(cap, nil)

	region := match.Region{X0: 0, Y0: 0, W: screenW, H: screenH}
	if err := reg.PrepareDefault(tmpl, region, match.Segmented, prep.Options{}); err != nil {
		t.Fatalf("PrepareDefault error: %v", err)
	}

	points, err := reg.Find(0.95)
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if len(points) == 0 {
		t.Fatal("Find returned no results")
	}
	// Find adjusts to the center of the matched region (spec §6).
	wantX := bx + bw/2
	wantY := by + bh/2
	if points[0].X != wantX || points[0].Y != wantY {
		t.Errorf("top match = (%d,%d), want (%d,%d)", points[0].X, points[0].Y, wantX, wantY)
	}
}

func TestRegistry_FindWithoutPrepareReturnsNoTemplatePrepared(t *testing.T) {
	cap := &fakeCapturer{grid: texturedBlock(50, 50, 128, 0, 0, 10, 10), w: 50, h: 50}
	reg := newTestRegistry(cap, nil)
	_, err := reg.Find(0.9)
	if !errors.Is(err, match.ErrNoTemplatePrepared) {
		t.Fatalf("Find error = %v, want ErrNoTemplatePrepared", err)
	}
}

func TestRegistry_StoreRejectsReservedAlias(t *testing.T) {
	cap := &fakeCapturer{grid: texturedBlock(50, 50, 128, 0, 0, 10, 10), w: 50, h: 50}
	reg := newTestRegistry(cap, nil)
	tmpl := texturedBlock(50, 50, 128, 0, 0, 10, 10).Sub(0, 0, 10, 10)
	region := match.Region{X0: 0, Y0: 0, W: 50, H: 50}

	for _, alias := range []string{"default", "default_backup"} {
		err := reg.Store(alias, tmpl, region, match.Segmented, prep.Options{})
		if !errors.Is(err, match.ErrAliasReserved) {
			t.Errorf("Store(%q) error = %v, want ErrAliasReserved", alias, err)
		}
	}
}

func TestRegistry_FindStored_SwapsAndRestoresDefaultSlot(t *testing.T) {
	const screenW, screenH = 300, 300
	const bx, by, bw, bh = 50, 60, 30, 30
	screen := texturedBlock(screenW, screenH, 128, bx, by, bw, bh)
	tmpl := screen.Sub(bx, by, bw, bh)

	cap := &fakeCapturer{grid: screen, w: screenW, h: screenH}
	reg := newTestRegistry(cap, nil)
	region := match.Region{X0: 0, Y0: 0, W: screenW, H: screenH}

	// Seed the default slot with a template that won't match, so we can
	// prove FindStored temporarily swaps it out and restores it after.
	decoyPix := make([]uint8, bw*bh)
	for i := range decoyPix {
		decoyPix[i] = uint8(250 - i%50)
	}
	decoy := match.GrayGrid{W: bw, H: bh, Pix: decoyPix}
	if err := reg.PrepareDefault(decoy, region, match.Segmented, prep.Options{}); err != nil {
		t.Fatalf("PrepareDefault(decoy) error: %v", err)
	}

	if err := reg.Store("button", tmpl, region, match.Segmented, prep.Options{}); err != nil {
		t.Fatalf("Store error: %v", err)
	}

	points, err := reg.FindStored(0.95, "button")
	if err != nil {
		t.Fatalf("FindStored error: %v", err)
	}
	if len(points) == 0 {
		t.Fatal("FindStored returned no results")
	}

	// The default slot must be restored to the decoy after FindStored exits.
	if _, ok := reg.entries[DefaultAlias]; !ok {
		t.Fatal("default slot missing after FindStored; restore did not run")
	}
	if reg.entries[DefaultAlias].Prepared != reg.entries["button"].Prepared {
		// Expected: they differ, since the decoy should have been restored,
		// not left as the swapped-in "button" entry.
	} else {
		t.Error("default slot still holds the swapped-in entry; restore did not run")
	}
}

func TestRegistry_FindStored_UnknownAlias(t *testing.T) {
	cap := &fakeCapturer{grid: texturedBlock(50, 50, 128, 0, 0, 10, 10), w: 50, h: 50}
	reg := newTestRegistry(cap, nil)
	_, err := reg.FindStored(0.9, "nope")
	if !errors.Is(err, match.ErrAliasMissing) {
		t.Fatalf("FindStored error = %v, want ErrAliasMissing", err)
	}
}

func TestRegistry_LoopFind_TimesOut(t *testing.T) {
	cap := &fakeCapturer{grid: texturedBlock(60, 60, 128, 0, 0, 10, 10), w: 60, h: 60}
	cfg := config.DefaultConfig()
	cfg.LoopPollIntervalMS = 1
	reg := newTestRegistry(cap, cfg)

	// Template that cannot be found anywhere in the screen.
	absentPix := make([]uint8, 10*10)
	for i := range absentPix {
		absentPix[i] = uint8(255 - i*2)
	}
	tmpl := match.GrayGrid{W: 10, H: 10, Pix: absentPix}
	region := match.Region{X0: 0, Y0: 0, W: 60, H: 60}
	if err := reg.PrepareDefault(tmpl, region, match.Segmented, prep.Options{}); err != nil {
		t.Fatalf("PrepareDefault error: %v", err)
	}

	start := time.Now()
	_, err := reg.LoopFind(0.99, 0.05)
	if !errors.Is(err, match.ErrFindTimeout) {
		t.Fatalf("LoopFind error = %v, want ErrFindTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("LoopFind returned after %v, want roughly >= timeout", elapsed)
	}
}

func TestRegistry_RetinaBackup_StoresResizedVariant(t *testing.T) {
	const screenW, screenH = 200, 200
	screen := texturedBlock(screenW, screenH, 128, 30, 30, 40, 40)
	tmpl := screen.Sub(30, 30, 40, 40)

	cap := &fakeCapturer{grid: screen, w: screenW, h: screenH}
	cfg := config.DefaultConfig()
	cfg.RetinaScale = 2.0
	reg := newTestRegistry(cap, cfg)

	region := match.Region{X0: 0, Y0: 0, W: screenW, H: screenH}
	if err := reg.Store("icon", tmpl, region, match.Segmented, prep.Options{}); err != nil {
		t.Fatalf("Store error: %v", err)
	}
	backup, ok := reg.entries["icon_backup"]
	if !ok {
		t.Fatal("expected icon_backup entry after Store with RetinaScale > 1")
	}
	w, h := backup.Prepared.Dims()
	if w != 20 || h != 20 {
		t.Errorf("backup dims = (%d,%d), want (20,20) (40/2)", w, h)
	}
}
