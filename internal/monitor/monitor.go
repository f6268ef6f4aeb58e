// Package monitor runs the background loop that watches the game process and
// the in-raid flag, keeps the polling snapshot fresh, promotes it to the
// pre-raid anchor when a raid starts and serves hotkey requests.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"SaveGuard/internal/decoder"
	"SaveGuard/internal/events"
	"SaveGuard/internal/presence"
	"SaveGuard/internal/snapshot"
	"SaveGuard/internal/state"
	"SaveGuard/internal/trayhotkey"
)

const (
	// StopTimeout bounds how long Stop waits for the loop goroutine.
	StopTimeout = 2 * time.Second

	minWait            = 50 * time.Millisecond
	minInRaidReadEvery = time.Second
)

// Decoder reads the flags the loop needs from the live save.
type Decoder interface {
	decoder.Probe
	ReadCloudEnabled(ctx context.Context, saveRoot string) (*bool, error)
}

// Hotkey is started and stopped together with the loop.
type Hotkey interface {
	Start() bool
	Stop()
}

type readiness interface {
	EnsureReady(ctx context.Context) error
}

type Options struct {
	Hotkey  Hotkey
	Trigger *trayhotkey.Trigger
	Logger  *slog.Logger
	Now     func() time.Time
}

type Monitor struct {
	mgr      *snapshot.Manager
	dec      Decoder
	presence presence.Checker
	bus      *events.Bus
	state    *state.Tracker
	trigger  *trayhotkey.Trigger
	hotkey   Hotkey
	logger   *slog.Logger
	now      func() time.Time

	// owned by the loop goroutine
	lastInRaid     *bool
	lastInRaidRead time.Time
	lastPoll       time.Time

	resetPending atomic.Bool
	wake         chan struct{}

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

func New(mgr *snapshot.Manager, dec Decoder, check presence.Checker, bus *events.Bus, st *state.Tracker, opts Options) *Monitor {
	m := &Monitor{
		mgr:      mgr,
		dec:      dec,
		presence: check,
		bus:      bus,
		state:    st,
		trigger:  opts.Trigger,
		hotkey:   opts.Hotkey,
		logger:   opts.Logger,
		now:      opts.Now,
		wake:     make(chan struct{}, 1),
	}
	if m.trigger == nil {
		m.trigger = trayhotkey.NewTrigger(trayhotkey.DefaultDebounce)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start checks the decoder, clears the polling bucket and launches the loop.
// Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	if r, ok := m.dec.(readiness); ok {
		if err := r.EnsureReady(ctx); err != nil {
			return err
		}
	}
	if err := m.mgr.ClearBucket(snapshot.BucketRuntimePoll); err != nil {
		return fmt.Errorf("clear poll bucket: %w", err)
	}

	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	m.running = true
	m.bus.Emit(events.Info("monitor started"))
	if m.hotkey != nil {
		m.bus.Emit(events.HotkeyStatus(m.hotkey.Start()))
	}

	go m.run(context.WithoutCancel(ctx), m.stopCh, m.done)
	return nil
}

// Stop signals the loop and waits up to StopTimeout for it. A capture in
// flight is allowed to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stopCh)
	done := m.done
	m.running = false
	m.mu.Unlock()

	select {
	case <-done:
	case <-time.After(StopTimeout):
		m.logger.Warn("monitor loop did not stop in time")
	}
	if m.hotkey != nil {
		m.hotkey.Stop()
	}
	m.bus.Emit(events.Info("monitor stopped"))
}

// Wake cuts the current wait short so the next tick runs promptly.
func (m *Monitor) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// RequestHotkeySnapshot flags an in-game save for the next tick.
func (m *Monitor) RequestHotkeySnapshot() bool {
	if !m.trigger.Request() {
		return false
	}
	m.bus.Emit(events.Info("F5 request received"))
	return true
}

func (m *Monitor) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	m.refreshCloudFlag(ctx)
	m.lastInRaidRead = time.Time{}
	m.lastPoll = time.Time{}

	for {
		select {
		case <-stop:
			return
		default:
		}
		wait := m.safeTick(ctx)
		if !m.sleep(stop, wait) {
			return
		}
	}
}

func (m *Monitor) safeTick(ctx context.Context) (wait time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			m.setError(fmt.Sprintf("monitor loop error: %v", r))
			wait = m.mgr.Config().PollInterval()
		}
	}()
	return m.tick(ctx)
}

// sleep waits for d or an early wake-up; it returns false once stopped.
func (m *Monitor) sleep(stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
	case <-m.wake:
	case <-m.trigger.Wake():
	}
	return true
}

func (m *Monitor) refreshCloudFlag(ctx context.Context) {
	cfg := m.mgr.Config()
	if cfg.SaveRoot == "" {
		m.state.SetCloudEnabled(nil)
		return
	}
	v, err := m.dec.ReadCloudEnabled(ctx, cfg.SaveRoot)
	if err != nil {
		m.setError(fmt.Sprintf("steam cloud status read failed: %v", err))
		return
	}
	m.state.SetCloudEnabled(v)
}

func (m *Monitor) setError(msg string) {
	m.state.SetLastError(msg, m.now())
	m.logger.Error(msg)
	m.bus.Emit(events.Error(msg))
}

// OnProfileChanged forgets everything learned about the previous profile.
func (m *Monitor) OnProfileChanged() {
	m.reset()
	m.bus.Emit(events.Info(fmt.Sprintf("switched to profile_%d", m.mgr.Config().Profile)))
	m.bus.Emit(events.State(false, nil, m.state.View().CloudEnabled))
}

func (m *Monitor) OnSaveRootChanged(ctx context.Context) {
	m.reset()
	m.refreshCloudFlag(ctx)
	m.bus.Emit(events.Info("switched save root: " + m.mgr.Config().SaveRoot))
	m.bus.Emit(events.State(false, nil, m.state.View().CloudEnabled))
}

func (m *Monitor) reset() {
	m.trigger.Clear()
	m.resetPending.Store(true)
	m.state.Reset()
	m.state.SetLastError("", time.Time{})
	if err := m.mgr.ClearBucket(snapshot.BucketRuntimePoll); err != nil {
		m.logger.Warn("clear poll bucket failed", "error", err)
	}
	m.Wake()
}
