//go:build !windows

package trayhotkey

type platformState struct{}

func (m *Manager) startPlatform() bool {
	if m.opts.Hotkey {
		m.log.Info("global hotkey is only available on Windows")
	}
	return false
}

func (m *Manager) stopPlatform() {}
