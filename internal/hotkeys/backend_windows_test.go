//go:build windows

package hotkeys

import (
	"testing"
	"unsafe"
)

func TestWin32Chord(t *testing.T) {
	tests := []struct {
		hotkey   string
		wantMods uint32
		wantVK   uint32
	}{
		{hotkey: "alt+1", wantMods: modAlt | modNoRepeat, wantVK: '1'},
		{hotkey: "Ctrl+Shift+F12", wantMods: modControl | modShift | modNoRepeat, wantVK: 0x7B},
		{hotkey: "win+a", wantMods: modWin | modNoRepeat, wantVK: 'A'},
		{hotkey: "ctrl+`", wantMods: modControl | modNoRepeat, wantVK: 0xC0},
		{hotkey: "alt+space", wantMods: modAlt | modNoRepeat, wantVK: 0x20},
		{hotkey: "f5", wantMods: modNoRepeat, wantVK: 0x74},
	}
	for _, tt := range tests {
		t.Run(tt.hotkey, func(t *testing.T) {
			mods, vk, err := win32Chord(MustParseChord(tt.hotkey))
			if err != nil {
				t.Fatalf("win32Chord() error = %v", err)
			}
			if mods != tt.wantMods || vk != tt.wantVK {
				t.Fatalf("win32Chord() = 0x%X, 0x%X; want 0x%X, 0x%X", mods, vk, tt.wantMods, tt.wantVK)
			}
		})
	}
}

func TestWinMsgSize(t *testing.T) {
	// On amd64: 48 bytes. On 386: 28 bytes.
	var expectedSize uintptr
	switch unsafe.Sizeof(uintptr(0)) {
	case 8:
		expectedSize = 48
	case 4:
		expectedSize = 28
	default:
		t.Skip("unknown pointer size")
	}
	if got := unsafe.Sizeof(winMsg{}); got != expectedSize {
		t.Fatalf("unsafe.Sizeof(winMsg{}) = %d, want %d", got, expectedSize)
	}
}
