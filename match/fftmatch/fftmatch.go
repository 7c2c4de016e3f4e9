// Package fftmatch implements the FFT-based NCC matcher: padded-FFT
// cross-correlation for the numerator, integral-image variance for the
// denominator.
//
// Grounded on original_source/src/normalized_x_corr/fft_ncc.rs, adapted from
// rustfft's unnormalized forward/inverse pair to gonum's dsp/fourier via
// match/internal/fftutil, and on the teacher's integral-table idiom
// (domain/capture/ncc.go) for the denominator.
package fftmatch

import (
	"fmt"
	"math"
	"sort"

	"github.com/soocke/autogui/match"
	"github.com/soocke/autogui/match/integral"
	"github.com/soocke/autogui/match/internal/fftutil"
	"github.com/soocke/autogui/match/prep"
)

// blowupLimit is the score above which a result is treated as numerical
// blow-up (near-zero denominator) and sanitized, per spec §4.4 step 4.
const blowupLimit = 2.0

// sentinelScore is reported for a sanitized, non-match offset (spec §9).
const sentinelScore = -100

// Match runs the FFT matcher over a screen region against a prepared FFT
// template, returning every offset whose NCC score is >= precision, sorted
// score-descending (ties broken by (y,x), spec §5).
func Match(data *prep.FFTData, screen match.GrayGrid, precision float32) ([]match.Point, error) {
	w, h := data.TmplW, data.TmplH
	W, H := screen.W, screen.H
	if W < w || H < h {
		return nil, fmt.Errorf("fftmatch: screen region smaller than template: %w", match.ErrRegionOutOfBounds)
	}
	P := data.Padded
	if P != nextPow2(maxInt(W, H)) {
		return nil, fmt.Errorf("fftmatch: prepared padded size does not match this region")
	}

	padded := make([]complex128, P*P)
	for y := 0; y < H; y++ {
		rowOff := y * W
		dstOff := y * P
		for x := 0; x < W; x++ {
			padded[dstOff+x] = complex(float64(screen.Pix[rowOff+x]), 0)
		}
	}

	freq := fftutil.Forward2D(padded, P)
	for i := range freq {
		freq[i] *= data.ConjFreq[i]
	}
	spatial := fftutil.Inverse2D(freq, P)

	scale := float64(P) * float64(P)
	integ := integral.Build(W, H, screen.Pix)
	tmplSSD := float64(data.TemplateSSD)

	var results []match.Point
	for y := 0; y <= H-h; y++ {
		for x := 0; x <= W-w; x++ {
			numerator := real(spatial[y*P+x]) / scale

			imageVar := integ.VarianceSum(x, y, w, h)
			denom := math.Sqrt(imageVar * tmplSSD)

			var score float32
			if denom <= 0 {
				score = -1
			} else {
				s := numerator / denom
				if s > blowupLimit || math.IsNaN(s) {
					score = sentinelScore
				} else {
					score = float32(s)
				}
			}
			if score >= precision {
				results = append(results, match.Point{X: x, Y: y, Score: score})
			}
		}
	}
	sort.Sort(match.ByScoreDesc(results))
	return results, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
