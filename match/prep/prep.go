// Package prep implements TemplatePrep: turning a raw grayscale template
// into the PreparedTemplate data a matcher needs, for either the FFT or the
// segmented family of match modes.
//
// Grounded on original_source/src/rustautogui_impl/template_match_impl/load_img_impl.rs
// (the Rust "prepare" entry points) and src/normalized_x_corr/fft_ncc.rs for
// the FFT padding/conjugation step, adapted to the teacher's
// constructor-returns-(value,error) idiom.
package prep

import (
	"fmt"
	"math/cmplx"

	"github.com/soocke/autogui/match"
	"github.com/soocke/autogui/match/internal/fftutil"
	"github.com/soocke/autogui/match/segment"
)

// Options configures a single TemplatePrep call. Threshold, if positive,
// overrides the initial segmenter multiplier k for both the fast and slow
// passes (spec §4.3).
type Options struct {
	Threshold float32
}

// SegmentedData is the PreparedTemplate payload for Segmented,
// SegmentedGpuV1 and SegmentedGpuV2 modes.
type SegmentedData struct {
	FastSegments []segment.Segment
	SlowSegments []segment.Segment
	TmplW, TmplH int
	FastSSD      float32
	SlowSSD      float32
	FastMean     float32
	SlowMean     float32
	FastExpectedCorr float32
	SlowExpectedCorr float32
	mode         match.MatchMode
}

func (d *SegmentedData) Mode() match.MatchMode  { return d.mode }
func (d *SegmentedData) Dims() (w, h int)       { return d.TmplW, d.TmplH }

// FFTData is the PreparedTemplate payload for FFT mode.
type FFTData struct {
	ConjFreq    []complex128 // P*P, conjugate of the padded template's DFT
	TemplateSSD float32
	TmplW, TmplH int
	Padded      int // P = next_pow2(max(region.w, region.h))
}

func (d *FFTData) Mode() match.MatchMode { return match.FFT }
func (d *FFTData) Dims() (w, h int)      { return d.TmplW, d.TmplH }

// Prepare builds a PreparedTemplate for tmpl against region, per spec §4.3.
// Preconditions (tmpl fits within region, both positive) are validated here;
// mode-specific work is delegated to prepareSegmented / prepareFFT.
func Prepare(tmpl match.GrayGrid, region match.Region, mode match.MatchMode, opts Options) (match.PreparedTemplate, error) {
	if tmpl.W <= 0 || tmpl.H <= 0 {
		return nil, fmt.Errorf("prep: empty template: %w", match.ErrNoTemplatePrepared)
	}
	if region.W <= 0 || region.H <= 0 || tmpl.W > region.W || tmpl.H > region.H {
		return nil, fmt.Errorf("prep: template larger than region: %w", match.ErrRegionOutOfBounds)
	}

	switch mode {
	case match.Segmented, match.SegmentedGpuV1, match.SegmentedGpuV2:
		return prepareSegmented(tmpl, mode, opts)
	case match.FFT:
		return prepareFFT(tmpl, region)
	default:
		return nil, match.ErrUnsupportedMode
	}
}

func prepareSegmented(tmpl match.GrayGrid, mode match.MatchMode, opts Options) (*SegmentedData, error) {
	fast, err := segment.Build(tmpl, segment.Fast, opts.Threshold)
	if err != nil {
		return nil, err
	}
	slow, err := segment.Build(tmpl, segment.Slow, opts.Threshold)
	if err != nil {
		return nil, err
	}
	return &SegmentedData{
		FastSegments:     fast.Segments,
		SlowSegments:     slow.Segments,
		TmplW:            tmpl.W,
		TmplH:            tmpl.H,
		FastSSD:          fast.SSD,
		SlowSSD:          slow.SSD,
		FastMean:         fast.Mean,
		SlowMean:         slow.Mean,
		FastExpectedCorr: fast.ExpectedCorr,
		SlowExpectedCorr: slow.ExpectedCorr,
		mode:             mode,
	}, nil
}

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// prepareFFT builds the zero-mean, zero-padded, conjugated frequency-domain
// template used by FFTMatcher, per spec §4.3/§4.4.
func prepareFFT(tmpl match.GrayGrid, region match.Region) (*FFTData, error) {
	padded := nextPow2(maxInt(region.W, region.H))

	var sum float64
	for _, p := range tmpl.Pix {
		sum += float64(p)
	}
	mean := sum / float64(tmpl.W*tmpl.H)

	var templateSSD float64
	for _, p := range tmpl.Pix {
		d := float64(p) - mean
		templateSSD += d * d
	}

	// Zero-mean, zero-pad the template into a padded x padded real grid,
	// placed at the origin (the offset is carried by the search side, not
	// the template side, matching the teacher's top-left convention).
	padGrid := make([]complex128, padded*padded)
	for y := 0; y < tmpl.H; y++ {
		rowOff := y * tmpl.W
		dstOff := y * padded
		for x := 0; x < tmpl.W; x++ {
			padGrid[dstOff+x] = complex(float64(tmpl.Pix[rowOff+x])-mean, 0)
		}
	}

	freq := fftutil.Forward2D(padGrid, padded)
	conj := make([]complex128, len(freq))
	for i, v := range freq {
		conj[i] = cmplx.Conj(v)
	}

	return &FFTData{
		ConjFreq:    conj,
		TemplateSSD: float32(templateSSD),
		TmplW:       tmpl.W,
		TmplH:       tmpl.H,
		Padded:      padded,
	}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
