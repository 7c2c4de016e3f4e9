// Package input is the thin, platform-dispatched collaborator the spec
// carves out as external: cursor motion, mouse button clicks, scroll, and
// keycode press/release (spec §1 Out of scope).
//
// Grounded on soockee-pixel-bot-go's action package (actions_windows.go):
// same direct user32.dll mouse_event/keybd_event/SetCursorPos calls, reshaped
// behind MouseSynth/KeySynth interfaces so the engine depends on a contract
// rather than a concrete OS package.
package input

// MouseButton selects which button a Click synthesizes.
type MouseButton int

const (
	Left MouseButton = iota
	Right
	Middle
)

// MouseSynth synthesizes mouse motion, clicks, and scroll wheel input.
type MouseSynth interface {
	// MoveCursor moves the OS pointer to (x, y) in physical screen pixels.
	MoveCursor(x, y int)
	// Click presses and releases button, holding for a realistic duration.
	Click(button MouseButton)
	// Scroll sends a vertical wheel delta (positive = up, per Win32 convention).
	Scroll(delta int)
}

// KeySynth synthesizes keyboard input by virtual-key code.
type KeySynth interface {
	// PressKey sends a key-down event for vk.
	PressKey(vk byte)
	// ReleaseKey sends a key-up event for vk.
	ReleaseKey(vk byte)
	// ParseVK converts a key token (e.g. "F3", "R") into a virtual-key code.
	ParseVK(key string) byte
}
