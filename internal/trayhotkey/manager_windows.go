package trayhotkey

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
	"unsafe"

	"github.com/getlantern/systray"
	"golang.org/x/sys/windows"
)

const (
	wmHotkey = 0x0312
	wmQuit   = 0x0012
	vkF5     = 0x74
	hotkeyID = 1
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procRegisterHotKey   = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey = user32.NewProc("UnregisterHotKey")
	procGetMessageW      = user32.NewProc("GetMessageW")
	procPostThreadMsgW   = user32.NewProc("PostThreadMessageW")
)

type point struct {
	X int32
	Y int32
}

type msg struct {
	HWnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

type platformState struct {
	hotkeyThread uint32
	trayRunning  bool
}

func (m *Manager) startPlatform() bool {
	registered := false
	if m.opts.Hotkey {
		ready := make(chan bool, 1)
		go m.hotkeyLoop(ready)
		select {
		case registered = <-ready:
		case <-time.After(2 * time.Second):
			m.log.Warn("hotkey registration timed out")
		}
	}
	if m.opts.Tray {
		m.mu.Lock()
		m.platform.trayRunning = true
		m.mu.Unlock()
		go systray.Run(m.onReady, func() {})
	}
	return registered
}

func (m *Manager) stopPlatform() {
	m.mu.Lock()
	tid := m.platform.hotkeyThread
	tray := m.platform.trayRunning
	m.mu.Unlock()
	if tid != 0 {
		_, _, _ = procPostThreadMsgW.Call(uintptr(tid), wmQuit, 0, 0)
	}
	if tray {
		systray.Quit()
	}
}

// hotkeyLoop owns one OS thread: the hotkey is bound to the thread that
// registered it and WM_HOTKEY arrives on that thread's queue only.
func (m *Manager) hotkeyLoop(ready chan<- bool) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	r1, _, err := procRegisterHotKey.Call(0, hotkeyID, 0, vkF5)
	if r1 == 0 {
		m.log.Error("failed to register global hotkey F5", "error", err)
		ready <- false
		return
	}
	defer procUnregisterHotKey.Call(0, hotkeyID)

	m.mu.Lock()
	m.platform.hotkeyThread = windows.GetCurrentThreadId()
	m.mu.Unlock()
	m.log.Info("global hotkey F5 registered")
	ready <- true

	var ms msg
	for {
		select {
		case <-m.stop:
			return
		default:
		}
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&ms)), 0, 0, 0)
		switch int32(r) {
		case 0:
			m.log.Info("global hotkey F5 unregistered")
			return
		case -1:
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if ms.Message == wmHotkey && ms.WParam == hotkeyID {
			m.fireHotkey()
		}
	}
}

func (m *Manager) onReady() {
	systray.SetTitle("SaveGuard")
	systray.SetTooltip("Save snapshots for Darkest Dungeon")
	m.setTrayIcon()

	itemSave := systray.AddMenuItem("Save now (F5)", "Take an in-game snapshot")
	systray.AddSeparator()
	itemExit := systray.AddMenuItem("Exit", "Stop monitoring and exit")

	go func() {
		for {
			select {
			case <-m.stop:
				return
			case <-itemSave.ClickedCh:
				m.fireHotkey()
			case <-itemExit.ClickedCh:
				m.fireExit()
				return
			}
		}
	}()
}

func (m *Manager) setTrayIcon() {
	exePath, err := os.Executable()
	if err != nil {
		return
	}
	exeDir := filepath.Dir(exePath)
	for _, p := range []string{
		filepath.Join(exeDir, "icon.ico"),
		filepath.Join(exeDir, "build", "windows", "icon.ico"),
	} {
		if data, err := os.ReadFile(p); err == nil {
			systray.SetIcon(data)
			return
		}
	}
}
