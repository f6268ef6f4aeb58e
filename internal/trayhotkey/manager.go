package trayhotkey

import (
	"log/slog"
	"sync"
)

// Dependencies are the callbacks the tray and the hotkey call into. They run
// on the tray or hotkey goroutine and must not block.
type Dependencies struct {
	OnHotkey func()
	OnExit   func()
}

type Options struct {
	Hotkey bool
	Tray   bool
	Logger *slog.Logger
}

type Manager struct {
	deps Dependencies
	opts Options
	log  *slog.Logger

	once     sync.Once
	stopOnce sync.Once
	stop     chan struct{}

	mu         sync.Mutex
	registered bool
	platform   platformState
}

func NewManager(deps Dependencies, opts Options) *Manager {
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Manager{deps: deps, opts: opts, log: l, stop: make(chan struct{})}
}

// Start brings up the tray and the global hotkey where supported and
// reports whether the hotkey is registered.
func (m *Manager) Start() bool {
	m.once.Do(func() {
		registered := m.startPlatform()
		m.mu.Lock()
		m.registered = registered
		m.mu.Unlock()
	})
	return m.Registered()
}

func (m *Manager) Registered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registered
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.stopPlatform()
	})
}

func (m *Manager) fireHotkey() {
	if m.deps.OnHotkey != nil {
		m.deps.OnHotkey()
	}
}

func (m *Manager) fireExit() {
	if m.deps.OnExit != nil {
		m.deps.OnExit()
	}
}
