// Package services wires the snapshot manager, the monitor loop, the hotkey
// and tray, the journal and the config watcher into one unit driven by the
// CLI or the desktop bridge.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/viper"

	"SaveGuard/internal/decoder"
	"SaveGuard/internal/events"
	"SaveGuard/internal/ipcapi"
	"SaveGuard/internal/journal"
	"SaveGuard/internal/monitor"
	"SaveGuard/internal/policy"
	"SaveGuard/internal/presence"
	"SaveGuard/internal/snapshot"
	"SaveGuard/internal/state"
	"SaveGuard/internal/trayhotkey"
)

type Dependencies struct {
	// EmitEvent receives every drained event, after it is journaled.
	EmitEvent func(ev events.Event)
	// OnExitRequested runs when the tray "Exit" item is picked.
	OnExitRequested func()
	Logger          *slog.Logger

	// Overrides; nil selects the real implementations.
	Decoder  monitor.Decoder
	Presence presence.Checker
	// NoJournal skips opening the SQLite journal.
	NoJournal bool
	// NoTray disables both the tray and the global hotkey.
	NoTray bool
}

// Result is delivered on the channel returned by the async operations.
type Result struct {
	Snapshot *snapshot.Record
	Backup   *snapshot.Record
	Err      error
}

type Services struct {
	deps Dependencies
	log  *slog.Logger

	cfgMu sync.RWMutex
	cfg   policy.Config

	bus  *events.Bus
	st   *state.Tracker
	mgr  *snapshot.Manager
	mon  *monitor.Monitor
	trig *trayhotkey.Trigger
	th   *trayhotkey.Manager
	jr   *journal.Journal
	pres presence.Checker

	runMu   sync.Mutex
	cancel  context.CancelFunc
	pumpWG  sync.WaitGroup
	started bool
	workers sync.WaitGroup
}

func New(cfg policy.Config, deps Dependencies) (*Services, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	dec := deps.Decoder
	if dec == nil {
		dec = decoder.New(cfg.JarFile(), cfg.JavaPath, log)
	}
	pres := deps.Presence
	if pres == nil {
		pres = presence.NewProcessChecker(cfg.ProcessName)
	}

	s := &Services{
		deps: deps,
		log:  log,
		cfg:  cfg,
		bus:  events.NewBus(),
		st:   state.NewTracker(),
		trig: trayhotkey.NewTrigger(trayhotkey.DefaultDebounce),
		pres: pres,
	}
	s.mgr = snapshot.NewManager(cfg, dec, pres, snapshot.WithLogger(log))

	opts := monitor.Options{Trigger: s.trig, Logger: log}
	if !deps.NoTray && (cfg.HotkeyEnabled || cfg.TrayEnabled) {
		s.th = trayhotkey.NewManager(trayhotkey.Dependencies{
			OnHotkey: func() { s.mon.RequestHotkeySnapshot() },
			OnExit: func() {
				s.runMu.Lock()
				fn := s.deps.OnExitRequested
				s.runMu.Unlock()
				if fn != nil {
					fn()
				}
			},
		}, trayhotkey.Options{Hotkey: cfg.HotkeyEnabled, Tray: cfg.TrayEnabled, Logger: log})
		opts.Hotkey = s.th
	}
	s.mon = monitor.New(s.mgr, dec, pres, s.bus, s.st, opts)

	if !deps.NoJournal {
		jr, err := journal.Open(cfg.JournalPath())
		if err != nil {
			log.Warn("journal unavailable", "path", cfg.JournalPath(), "error", err)
		} else {
			s.jr = jr
		}
	}
	return s, nil
}

func (s *Services) Config() policy.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

func (s *Services) Manager() *snapshot.Manager { return s.mgr }

// SetEventSink replaces Dependencies.EmitEvent. It must be called before Start.
func (s *Services) SetEventSink(fn func(events.Event)) {
	s.runMu.Lock()
	s.deps.EmitEvent = fn
	s.runMu.Unlock()
}

// SetExitHandler replaces Dependencies.OnExitRequested.
func (s *Services) SetExitHandler(fn func()) {
	s.runMu.Lock()
	s.deps.OnExitRequested = fn
	s.runMu.Unlock()
}

// Start launches the event pump and the process watcher. The monitor loop
// itself is started separately with StartMonitor.
func (s *Services) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.started {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	s.pumpWG.Add(1)
	go func() {
		defer s.pumpWG.Done()
		s.pump(ctx)
	}()

	if w, ok := s.pres.(interface {
		Watch(context.Context, func())
	}); ok {
		go w.Watch(ctx, s.mon.Wake)
	}
}

// Stop stops the monitor, flushes pending events through the pump and
// closes the journal.
func (s *Services) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.started {
		s.closeJournal()
		return
	}
	s.mon.Stop()
	s.workers.Wait()
	s.bus.Stop()
	s.pumpWG.Wait()
	// the pump may have left early on a cancelled context
	s.flush()
	s.cancel()
	s.started = false
	s.closeJournal()
}

func (s *Services) closeJournal() {
	if s.jr != nil {
		if err := s.jr.Close(); err != nil {
			s.log.Warn("journal close failed", "error", err)
		}
		s.jr = nil
	}
}

func (s *Services) StartMonitor(ctx context.Context) error {
	return s.mon.Start(ctx)
}

func (s *Services) StopMonitor() { s.mon.Stop() }

func (s *Services) pump(ctx context.Context) {
	for {
		ev, err := s.bus.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.flush()
			}
			return
		}
		s.deliver(ev)
	}
}

func (s *Services) flush() {
	for _, ev := range s.bus.Drain() {
		s.deliver(ev)
	}
}

func (s *Services) deliver(ev events.Event) {
	if s.jr != nil && ev.Type != events.TypeState {
		if err := s.jr.Append(context.Background(), s.Config().Profile, ev); err != nil {
			s.log.Warn("journal append failed", "event", ev.Type, "error", err)
		}
	}
	if s.deps.EmitEvent != nil {
		s.deps.EmitEvent(ev)
	}
}

// WatchConfig applies config file edits while running.
func (s *Services) WatchConfig(v *viper.Viper, baseDir string) {
	policy.Watch(v, baseDir, s.log, func(cfg policy.Config) {
		s.SetConfig(context.Background(), cfg)
	})
}

// SetConfig swaps the configuration. A changed save root or profile resets
// the monitor's view of the game.
func (s *Services) SetConfig(ctx context.Context, cfg policy.Config) {
	cfg = cfg.Normalize()
	s.cfgMu.Lock()
	old := s.cfg
	s.cfg = cfg
	s.cfgMu.Unlock()

	s.mgr.SetConfig(cfg)
	switch {
	case old.SaveRoot != cfg.SaveRoot:
		s.mon.OnSaveRootChanged(ctx)
	case old.Profile != cfg.Profile:
		s.mon.OnProfileChanged()
	}
	if old.ProcessName != cfg.ProcessName || old.JarPath != cfg.JarPath || old.JavaPath != cfg.JavaPath {
		s.log.Info("process and decoder settings take effect after restart")
	}
}

func (s *Services) State() ipcapi.StateView {
	v := ipcapi.FromState(s.st.View())
	cfg := s.Config()
	v.Monitoring = s.mon.Running()
	v.Profile = cfg.Profile
	v.SaveRoot = cfg.SaveRoot
	return v
}

// ListSnapshots lists one bucket, or every visible bucket when bucket is empty.
func (s *Services) ListSnapshots(bucket string, includeInvalid bool) ([]snapshot.Record, error) {
	store := s.mgr.Store()
	if bucket == "" {
		return store.ListVisible(includeInvalid)
	}
	b, err := snapshot.ParseBucket(bucket)
	if err != nil {
		return nil, err
	}
	return store.List(b, includeInvalid)
}

func (s *Services) CaptureManual(ctx context.Context) (*snapshot.Record, error) {
	return s.mon.TriggerManualClosedSnapshot(ctx)
}

// Restore looks id up in any bucket of the active profile and restores it.
// Records that failed integrity are refused unless force is set.
func (s *Services) Restore(ctx context.Context, id string, force bool) (*snapshot.Record, error) {
	target, err := s.mgr.Store().Find(id)
	if err != nil {
		return nil, err
	}
	if !target.Restorable() && !force {
		return nil, fmt.Errorf("snapshot %s has no verified metadata; pass force to restore it anyway", id)
	}
	return s.mon.Restore(ctx, target)
}

func (s *Services) RequestHotkeySnapshot() bool {
	return s.mon.RequestHotkeySnapshot()
}

func (s *Services) ClearBucket(bucket string) error {
	b, err := snapshot.ParseBucket(bucket)
	if err != nil {
		return err
	}
	if err := s.mgr.ClearBucket(b); err != nil {
		return err
	}
	s.bus.Emit(events.Info("cleared bucket " + b.Label()))
	return nil
}

// CaptureManualAsync runs CaptureManual on a worker goroutine.
func (s *Services) CaptureManualAsync(ctx context.Context) <-chan Result {
	return s.async(func() Result {
		rec, err := s.CaptureManual(ctx)
		return Result{Snapshot: rec, Err: err}
	})
}

// RestoreAsync runs Restore on a worker goroutine.
func (s *Services) RestoreAsync(ctx context.Context, id string, force bool) <-chan Result {
	return s.async(func() Result {
		backup, err := s.Restore(ctx, id, force)
		return Result{Backup: backup, Err: err}
	})
}

func (s *Services) async(fn func() Result) <-chan Result {
	out := make(chan Result, 1)
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		out <- fn()
	}()
	return out
}

// History returns the most recent journal entries.
func (s *Services) History(ctx context.Context, limit int, types ...events.Type) ([]ipcapi.HistoryEntry, error) {
	if s.jr == nil {
		return nil, errors.New("journal is not available")
	}
	entries, err := s.jr.Recent(ctx, limit, types...)
	if err != nil {
		return nil, err
	}
	out := make([]ipcapi.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ipcapi.HistoryEntry{
			ID:      e.ID,
			Type:    string(e.Type),
			AtUTC:   e.At.UnixMilli(),
			Profile: e.Profile,
			Summary: e.Summary,
		})
	}
	return out, nil
}
