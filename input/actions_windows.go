//go:build windows

package input

import (
	"strings"
	"time"

	"golang.org/x/sys/windows"
)

const (
	mouseeventfLeftdown  = 0x0002
	mouseeventfLeftup    = 0x0004
	mouseeventfRightdown = 0x0008
	mouseeventfRightup   = 0x0010
	mouseeventfMiddledown = 0x0020
	mouseeventfMiddleup   = 0x0040
	mouseeventfWheel      = 0x0800
	keyeventfKeyup        = 0x0002
)

var (
	user32         = windows.NewLazySystemDLL("user32.dll")
	procMouseEvent = user32.NewProc("mouse_event")
	procSetCursor  = user32.NewProc("SetCursorPos")
	procKeybdEvent = user32.NewProc("keybd_event")
)

// windowsSynth implements both MouseSynth and KeySynth via direct user32.dll
// calls, the same functions soockee-pixel-bot-go's actions_windows.go used.
type windowsSynth struct{}

// New returns the Windows-backed MouseSynth/KeySynth.
func New() (MouseSynth, KeySynth) {
	s := windowsSynth{}
	return s, s
}

func (windowsSynth) MoveCursor(x, y int) {
	_, _, _ = procSetCursor.Call(uintptr(x), uintptr(y))
}

func (windowsSynth) Click(button MouseButton) {
	var down, up uintptr
	switch button {
	case Right:
		down, up = mouseeventfRightdown, mouseeventfRightup
	case Middle:
		down, up = mouseeventfMiddledown, mouseeventfMiddleup
	default:
		down, up = mouseeventfLeftdown, mouseeventfLeftup
	}
	_, _, _ = procMouseEvent.Call(down, 0, 0, 0, 0)
	time.Sleep(30 * time.Millisecond)
	_, _, _ = procMouseEvent.Call(up, 0, 0, 0, 0)
}

func (windowsSynth) Scroll(delta int) {
	_, _, _ = procMouseEvent.Call(mouseeventfWheel, 0, 0, uintptr(int32(delta)), 0)
}

func (windowsSynth) PressKey(vk byte) {
	_, _, _ = procKeybdEvent.Call(uintptr(vk), 0, 0, 0)
}

func (windowsSynth) ReleaseKey(vk byte) {
	_, _, _ = procKeybdEvent.Call(uintptr(vk), 0, keyeventfKeyup, 0)
}

// ParseVK converts a key token (e.g. "F3", "R") into a Windows virtual-key
// code. Recognizes F1..F12 and single letters A..Z. Unknown tokens return
// VK_F3.
func (windowsSynth) ParseVK(key string) byte {
	k := strings.ToUpper(strings.TrimSpace(key))
	if len(k) == 2 && k[0] == 'F' {
		n := int(k[1] - '0')
		if n >= 1 && n <= 9 {
			return byte(0x70 + (n - 1)) // VK_F1=0x70
		}
	}
	if len(k) == 3 && k[0] == 'F' {
		switch k {
		case "F10":
			return 0x79
		case "F11":
			return 0x7A
		case "F12":
			return 0x7B
		}
	}
	if len(k) == 1 && k[0] >= 'A' && k[0] <= 'Z' {
		return k[0] // 'A'..'Z' match VK codes
	}
	return 0x72 // default fallback F3
}
