//go:build windows

package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32DLL = windows.NewLazySystemDLL("user32.dll")

	procRegisterHotKey     = user32DLL.NewProc("RegisterHotKey")
	procUnregisterHotKey   = user32DLL.NewProc("UnregisterHotKey")
	procGetMessageW        = user32DLL.NewProc("GetMessageW")
	procPostThreadMessageW = user32DLL.NewProc("PostThreadMessageW")
	procPeekMessageW       = user32DLL.NewProc("PeekMessageW")
)

const (
	wmHotkey   = 0x0312
	wmQuit     = 0x0012
	pmNoRemove = 0x0000

	// firstHotkeyID starts the application-defined ID range (0x0000-0xBFFF).
	firstHotkeyID int32 = 0x1000
	stopTimeout         = 2 * time.Second
)

// point mirrors the Win32 POINT struct.
type point struct {
	x int32
	y int32
}

// winMsg mirrors the Win32 MSG struct (tagMSG from winuser.h).
// Field order and types must not be changed.
type winMsg struct {
	hWnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       point
	lPrivate uint32
}

type loopReady struct {
	threadID uint32
	err      error
}

type win32Backend struct{}

func newPlatformBackend() Backend { return win32Backend{} }

// win32Listener owns one message-loop thread holding every registration.
type win32Listener struct {
	threadID uint32
	doneCh   chan struct{}
}

// Listen registers all chords on a dedicated, locked OS thread. RegisterHotKey
// delivers WM_HOTKEY only to the registering thread's queue.
func (win32Backend) Listen(chords []Chord, fire func(Chord)) (Listener, error) {
	if fire == nil {
		return nil, errors.New("fire callback is required")
	}
	if err := user32DLL.Load(); err != nil {
		return nil, fmt.Errorf("user32.dll is unavailable: %w", err)
	}

	readyCh := make(chan loopReady, 1)
	doneCh := make(chan struct{})
	go runHotkeyLoop(chords, fire, readyCh, doneCh)

	ready := <-readyCh
	if ready.err != nil {
		<-doneCh
		return nil, ready.err
	}
	return &win32Listener{threadID: ready.threadID, doneCh: doneCh}, nil
}

// Stop posts WM_QUIT to the loop thread and waits for it to unregister.
func (l *win32Listener) Stop() error {
	stopErr := postQuit(l.threadID)

	timer := time.NewTimer(stopTimeout)
	defer timer.Stop()
	select {
	case <-l.doneCh:
	case <-timer.C:
		slog.Warn("[hotkey] message loop stop timed out, thread may leak", "threadID", l.threadID)
		stopErr = errors.Join(stopErr, fmt.Errorf("hotkey message loop stop timed out (thread=%d)", l.threadID))
	}
	return stopErr
}

func runHotkeyLoop(chords []Chord, fire func(Chord), readyCh chan<- loopReady, doneCh chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(doneCh)

	threadID := windows.GetCurrentThreadId()

	// PeekMessageW creates the thread message queue so PostThreadMessageW in
	// Stop can deliver WM_QUIT.
	var qmsg winMsg
	procPeekMessageW.Call(uintptr(unsafe.Pointer(&qmsg)), 0, 0, 0, pmNoRemove)

	byID := make(map[int32]Chord, len(chords))
	defer func() {
		for id := range byID {
			if err := unregisterHotKey(id); err != nil {
				slog.Error("[hotkey] UnregisterHotKey on loop exit failed", "error", err, "hotkeyID", id)
			}
		}
	}()

	for i, c := range chords {
		mods, vk, err := win32Chord(c)
		if err == nil {
			err = registerHotKey(firstHotkeyID+int32(i), mods, vk)
		}
		if err != nil {
			readyCh <- loopReady{err: fmt.Errorf("register hotkey %q: %w", c.String(), err)}
			return
		}
		byID[firstHotkeyID+int32(i)] = c
	}

	readyCh <- loopReady{threadID: threadID}

	for {
		var msg winMsg
		ret, _, lastErr := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(ret) {
		case -1:
			slog.Warn("[hotkey] GetMessageW returned error, exiting loop", "error", lastErr)
			return
		case 0:
			slog.Debug("[hotkey] message loop received WM_QUIT")
			return
		}
		if msg.message != wmHotkey {
			continue
		}
		if c, ok := byID[int32(msg.wParam)]; ok {
			fire(c)
		}
	}
}

func registerHotKey(hotkeyID int32, modifiers uint32, key uint32) error {
	res, _, err := procRegisterHotKey.Call(0, uintptr(hotkeyID), uintptr(modifiers), uintptr(key))
	if res != 0 {
		return nil
	}
	if errors.Is(err, windows.ERROR_SUCCESS) {
		return errors.New("RegisterHotKey failed")
	}
	return err
}

func unregisterHotKey(hotkeyID int32) error {
	res, _, err := procUnregisterHotKey.Call(0, uintptr(hotkeyID))
	if res != 0 {
		return nil
	}
	if errors.Is(err, windows.ERROR_SUCCESS) {
		return errors.New("UnregisterHotKey failed")
	}
	return err
}

func postQuit(threadID uint32) error {
	if threadID == 0 {
		return errors.New("cannot post WM_QUIT: threadID is 0")
	}
	res, _, err := procPostThreadMessageW.Call(uintptr(threadID), wmQuit, 0, 0)
	if res != 0 {
		return nil
	}
	if errors.Is(err, windows.ERROR_SUCCESS) {
		return errors.New("PostThreadMessageW failed")
	}
	return err
}
