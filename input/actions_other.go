//go:build !windows

package input

// otherSynth is a stub for platforms the teacher never targeted (its
// action package was windows-only). It keeps the module buildable off
// Windows; MouseSynth/KeySynth carry no error return, so the stub's
// methods no-op instead of signaling the gap at the call site.
type otherSynth struct{}

// New returns a MouseSynth/KeySynth pair that no-ops on this platform.
func New() (MouseSynth, KeySynth) {
	s := otherSynth{}
	return s, s
}

func (otherSynth) MoveCursor(x, y int)     {}
func (otherSynth) Click(button MouseButton) {}
func (otherSynth) Scroll(delta int)         {}
func (otherSynth) PressKey(vk byte)         {}
func (otherSynth) ReleaseKey(vk byte)       {}
func (otherSynth) ParseVK(key string) byte  { return 0 }
