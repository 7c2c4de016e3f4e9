// Package match holds the shared data model for the template-matching core:
// grayscale grids, search regions, match modes and the prepared-template
// contract that every matcher (FFT, CPU segmented, GPU segmented) consumes.
package match

import "errors"

// Sentinel errors returned by the core. Names mirror spec §6's conceptual
// error taxonomy; wrapped with fmt.Errorf("%w", ...) by callers that need
// to attach context.
var (
	ErrUnsupportedMode   = errors.New("match: unsupported match mode")
	ErrAliasReserved     = errors.New("match: alias is reserved")
	ErrAliasMissing      = errors.New("match: no template stored under alias")
	ErrRegionOutOfBounds = errors.New("match: region out of screen bounds")
	ErrTemplateTooSimple = errors.New("match: template is too simple (uniform) to segment")
	ErrNoTemplatePrepared = errors.New("match: no template prepared")
	ErrGpuDeviceError    = errors.New("match: gpu device error")
	ErrImageDecodeError  = errors.New("match: image decode error")
	ErrFindTimeout       = errors.New("match: find timed out")
)

// GrayGrid is an immutable rectangular array of 8-bit intensities, row-major.
type GrayGrid struct {
	W, H int
	Pix  []uint8
}

// NewGrayGrid wraps pix (row-major, length w*h) as a GrayGrid. It does not copy.
func NewGrayGrid(w, h int, pix []uint8) GrayGrid {
	return GrayGrid{W: w, H: h, Pix: pix}
}

// At returns the intensity at (x,y). Callers must keep 0<=x<W, 0<=y<H.
func (g GrayGrid) At(x, y int) uint8 {
	return g.Pix[y*g.W+x]
}

// Sub returns a copy of the w×h sub-grid whose top-left is (x0,y0).
func (g GrayGrid) Sub(x0, y0, w, h int) GrayGrid {
	out := make([]uint8, w*h)
	for row := 0; row < h; row++ {
		srcOff := (y0+row)*g.W + x0
		dstOff := row * w
		copy(out[dstOff:dstOff+w], g.Pix[srcOff:srcOff+w])
	}
	return GrayGrid{W: w, H: h, Pix: out}
}

// Region defines a search window within a screen capture.
type Region struct {
	X0, Y0, W, H int
}

// Valid reports whether the region fits inside a screenW×screenH image
// and is at least as large as a tmplW×tmplH template.
func (r Region) Valid(screenW, screenH, tmplW, tmplH int) bool {
	if r.W <= 0 || r.H <= 0 {
		return false
	}
	if r.X0 < 0 || r.Y0 < 0 || r.X0+r.W > screenW || r.Y0+r.H > screenH {
		return false
	}
	return r.W >= tmplW && r.H >= tmplH
}

// MatchMode selects which matcher implementation a prepared template uses.
type MatchMode int

const (
	FFT MatchMode = iota
	Segmented
	SegmentedGpuV1
	SegmentedGpuV2
)

func (m MatchMode) String() string {
	switch m {
	case FFT:
		return "fft"
	case Segmented:
		return "segmented"
	case SegmentedGpuV1:
		return "segmented_gpu_v1"
	case SegmentedGpuV2:
		return "segmented_gpu_v2"
	default:
		return "unknown"
	}
}

// PreparedTemplate is the tagged-union contract produced by TemplatePrep and
// consumed by a matcher. Concrete implementations live in package prep.
type PreparedTemplate interface {
	// Mode reports which matcher this prepared data targets.
	Mode() MatchMode
	// Dims reports the original template's width and height in pixels.
	Dims() (w, h int)
}

// Point is a single reported match plus its normalized correlation score.
// The matchers report the template's top-left offset within the searched
// region; the registry's Find family converts that to the screen-space
// center of the matched area.
type Point struct {
	X, Y  int
	Score float32
}

// ByScoreDesc sorts Points by Score descending, ties broken by (Y, X)
// ascending (insertion order of a row-major scan), per spec §5's ordering
// guarantee.
type ByScoreDesc []Point

func (p ByScoreDesc) Len() int      { return len(p) }
func (p ByScoreDesc) Swap(i, j int) { p[i], p[j] = p[j], p[i] }
func (p ByScoreDesc) Less(i, j int) bool {
	if p[i].Score != p[j].Score {
		return p[i].Score > p[j].Score
	}
	if p[i].Y != p[j].Y {
		return p[i].Y < p[j].Y
	}
	return p[i].X < p[j].X
}
