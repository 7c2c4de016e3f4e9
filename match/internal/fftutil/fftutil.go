// Package fftutil provides the separable 2-D complex FFT used by both
// TemplatePrep (forward transform of the padded template) and FFTMatcher
// (forward transform of the search image, inverse transform of the
// frequency-domain product). Built on gonum.org/v1/gonum/dsp/fourier's 1-D
// complex FFT, applied row-wise then column-wise.
package fftutil

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Forward2D computes the forward, unnormalized 2-D DFT of an n*n row-major
// complex grid: out(u,v) = Σ grid(x,y) * exp(-2πi(ux/n+vy/n)).
func Forward2D(grid []complex128, n int) []complex128 {
	return transformRowsCols(grid, n)
}

// Inverse2D computes the unnormalized inverse 2-D DFT (no 1/n^2 scaling):
// out(x,y) = Σ grid(u,v) * exp(+2πi(ux/n+vy/n)). Callers divide by n^2
// themselves (spec §4.4 step 2), matching an FFT library whose
// forward/inverse pair is unnormalized both ways, as original_source's
// rustfft crate is. This is computed via the conjugate trick
// ifft_unnorm(X) = conj(fft(conj(X))), so it depends only on the forward
// transform's convention, not on gonum's own normalization choice for its
// inverse method.
func Inverse2D(grid []complex128, n int) []complex128 {
	conjIn := make([]complex128, len(grid))
	for i, v := range grid {
		conjIn[i] = cmplx.Conj(v)
	}
	out := transformRowsCols(conjIn, n)
	for i, v := range out {
		out[i] = cmplx.Conj(v)
	}
	return out
}

func transformRowsCols(grid []complex128, n int) []complex128 {
	fft := fourier.NewCmplxFFT(n)
	out := make([]complex128, n*n)

	row := make([]complex128, n)
	for y := 0; y < n; y++ {
		copy(row, grid[y*n:(y+1)*n])
		res := fft.Coefficients(nil, row)
		copy(out[y*n:(y+1)*n], res)
	}

	col := make([]complex128, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = out[y*n+x]
		}
		res := fft.Coefficients(nil, col)
		for y := 0; y < n; y++ {
			out[y*n+x] = res[y]
		}
	}
	return out
}
