//go:build windows

package hotkeys

import "fmt"

const (
	modAlt      uint32 = 0x0001
	modControl  uint32 = 0x0002
	modShift    uint32 = 0x0004
	modWin      uint32 = 0x0008
	modNoRepeat uint32 = 0x4000
)

var windowsModifierByToken = map[string]uint32{
	"ctrl":  modControl,
	"alt":   modAlt,
	"shift": modShift,
	"super": modWin,
}

var windowsKeyByToken = map[string]uint32{
	"space":     0x20,
	"tab":       0x09,
	"enter":     0x0D,
	"esc":       0x1B,
	"backspace": 0x08,
	"delete":    0x2E,
	"insert":    0x2D,
	"home":      0x24,
	"end":       0x23,
	"page_up":   0x21,
	"page_down": 0x22,
	"left":      0x25,
	"up":        0x26,
	"right":     0x27,
	"down":      0x28,
	";":         0xBA,
	"=":         0xBB,
	",":         0xBC,
	"-":         0xBD,
	".":         0xBE,
	"/":         0xBF,
	"`":         0xC0,
	"[":         0xDB,
	"\\":        0xDC,
	"]":         0xDD,
	"'":         0xDE,
}

const vkF1 uint32 = 0x70

// win32Chord resolves c to RegisterHotKey arguments. MOD_NOREPEAT is always
// set so a held chord fires once.
func win32Chord(c Chord) (mods uint32, vk uint32, err error) {
	mods = modNoRepeat
	for _, m := range c.Modifiers() {
		mods |= windowsModifierByToken[m]
	}

	key := c.Key()
	if n, ok := functionKeyNumber(key); ok {
		return mods, vkF1 + uint32(n-1), nil
	}
	if v, ok := windowsKeyByToken[key]; ok {
		return mods, v, nil
	}
	if len(key) == 1 {
		ch := key[0]
		switch {
		case ch >= 'a' && ch <= 'z':
			return mods, uint32(ch - 'a' + 'A'), nil
		case ch >= '0' && ch <= '9':
			return mods, uint32(ch), nil
		}
	}
	return 0, 0, fmt.Errorf("no virtual-key code for %q", key)
}
