// Package grayconv converts captured color frames into the 8-bit grayscale
// grids the matching core operates on, and resizes grayscale grids for the
// registry's retina/HiDPI backup variant (spec §4.7, §9).
//
// Grounded on golang.org/x/image/draw's scaler, which the teacher's go.mod
// already carries as a dependency of the capture/rendering path; resize here
// reuses draw.CatmullRom the way the teacher's asset pipeline would for any
// other image resampling need.
package grayconv

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/soocke/autogui/match"
)

// FromRGBA flattens an *image.RGBA into a row-major 8-bit luma grid using the
// standard Rec. 601 luma weights (same formula image/color.Gray uses), so
// results are consistent regardless of which capture backend produced the
// frame. The backing slice is freshly allocated; capturers that recycle
// their output through a buffer pool should call FromRGBAInto instead.
func FromRGBA(img *image.RGBA) match.GrayGrid {
	b := img.Bounds()
	return FromRGBAInto(img, make([]uint8, b.Dx()*b.Dy()))
}

// FromRGBAInto is FromRGBA but writes into the caller-supplied dst (which
// must have length >= w*h) instead of allocating, so a capturer can draw dst
// from a recycled buffer pool (screen.AcquireGray/RecycleGray) and avoid a
// fresh allocation on every captured frame.
func FromRGBAInto(img *image.RGBA, dst []uint8) match.GrayGrid {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst = dst[:w*h]
	for y := 0; y < h; y++ {
		srcOff := img.PixOffset(b.Min.X, b.Min.Y+y)
		dstOff := y * w
		row := img.Pix[srcOff : srcOff+w*4]
		for x := 0; x < w; x++ {
			r := uint32(row[x*4])
			g := uint32(row[x*4+1])
			bl := uint32(row[x*4+2])
			dst[dstOff+x] = uint8((19595*r + 38470*g + 7471*bl + 1<<15) >> 16)
		}
	}
	return match.GrayGrid{W: w, H: h, Pix: dst}
}

// Resize scales a grayscale grid to newW x newH using Catmull-Rom
// resampling, the quality tier the teacher's asset loader applies to
// downscaled thumbnails. Used by the registry to build a "_backup" template
// variant resized by the inverse of a HiDPI capture scale factor.
func Resize(g match.GrayGrid, newW, newH int) match.GrayGrid {
	if newW <= 0 || newH <= 0 {
		return match.GrayGrid{}
	}
	src := image.NewGray(image.Rect(0, 0, g.W, g.H))
	copy(src.Pix, g.Pix)

	dst := image.NewGray(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return match.GrayGrid{W: newW, H: newH, Pix: dst.Pix}
}
