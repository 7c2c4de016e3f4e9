// Package screen is the thin, platform-dispatched collaborator the spec
// carves out as "external": grab a grayscale subregion of the display and
// report its size (spec §1 Out of scope, §6 screen_size).
//
// Grounded on soockee-pixel-bot-go's capture package: this package reshapes
// its capture entry points into the Capturer interface (GrabGray / Size /
// ReleaseGray), keeps its Windows GDI backing store, returns match.GrayGrid
// instead of *image.RGBA, and
// adds a non-Windows path wired to the same github.com/vova616/screenshot
// dependency the teacher already imports.
package screen

import "github.com/soocke/autogui/match"

// Capturer grabs grayscale subregions of the physical display. Platform
// implementations (capture_windows.go, capture_other.go) back New().
type Capturer interface {
	// GrabGray captures the w x h rectangle at (x0,y0) and returns it as a
	// grayscale grid. Coordinates are in physical (not logical/HiDPI-scaled)
	// pixels.
	GrabGray(x0, y0, w, h int) (match.GrayGrid, error)
	// Size reports the full virtual screen's width and height in physical
	// pixels (spec §6 screen_size).
	Size() (w, h int)
	// ReleaseGray returns a grid previously produced by GrabGray once the
	// caller is done reading it. Implementations that hand out pooled
	// buffers (capture_other.go) recycle them here; implementations that
	// reuse a single persistent buffer across every call (capture_windows.go)
	// treat this as a no-op.
	ReleaseGray(g match.GrayGrid)
}
