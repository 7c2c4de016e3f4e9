//go:build !windows

package screen

import (
	"image"

	"github.com/vova616/screenshot"

	"github.com/soocke/autogui/internal/grayconv"
	"github.com/soocke/autogui/match"
)

// otherCapturer implements Capturer via github.com/vova616/screenshot, the
// teacher's original cross-platform capture dependency (soockee-pixel-bot-go's
// capture/capture.go called screenshot.CaptureScreen / CaptureRect directly).
type otherCapturer struct{}

// New returns the github.com/vova616/screenshot-backed Capturer.
func New() Capturer { return otherCapturer{} }

func (otherCapturer) Size() (int, int) {
	r := screenshot.ScreenRect()
	return r.Dx(), r.Dy()
}

func (otherCapturer) GrabGray(x0, y0, w, h int) (match.GrayGrid, error) {
	rect := image.Rect(x0, y0, x0+w, y0+h)
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return match.GrayGrid{}, err
	}
	return grayconv.FromRGBAInto(img, AcquireGray(w*h)), nil
}

// ReleaseGray returns g's backing buffer to the pool AcquireGray draws from.
func (otherCapturer) ReleaseGray(g match.GrayGrid) {
	RecycleGray(g.Pix)
}
