package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"SaveGuard/internal/events"
	"SaveGuard/internal/ipcapi"
	"SaveGuard/internal/services"
)

// EventName is the frontend event every monitor event is forwarded on.
const EventName = "saveguard:event"

type App struct {
	ctx context.Context
	log *slog.Logger

	svc   *services.Services
	start sync.Once
}

func NewApp(svc *services.Services, logger *slog.Logger) *App {
	return &App{svc: svc, log: logger}
}

// forward is installed as the services event sink.
func (a *App) forward(ev events.Event) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, EventName, ipcapi.FromEvent(ev))
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	a.start.Do(func() {
		a.svc.SetEventSink(a.forward)
		a.svc.SetExitHandler(a.ExitApp)
		a.svc.Start(ctx)
		if err := a.svc.StartMonitor(ctx); err != nil {
			a.log.Error("monitor start failed", "error", err)
			runtime.EventsEmit(ctx, EventName, ipcapi.FromEvent(events.Error(err.Error())))
		}
	})
}

func (a *App) shutdown(ctx context.Context) {
	a.svc.Stop()
}

func (a *App) GetState() ipcapi.StateView {
	return a.svc.State()
}

func (a *App) ListSnapshots(bucket string, includeInvalid bool) ([]ipcapi.SnapshotMeta, error) {
	recs, err := a.svc.ListSnapshots(bucket, includeInvalid)
	if err != nil {
		return nil, err
	}
	return ipcapi.FromRecords(recs), nil
}

// CaptureManual returns immediately; the result arrives as an event.
func (a *App) CaptureManual() {
	a.svc.CaptureManualAsync(a.ctx)
}

func (a *App) Restore(snapshotID string, force bool) {
	a.svc.RestoreAsync(a.ctx, snapshotID, force)
}

func (a *App) RequestHotkeySnapshot() bool {
	return a.svc.RequestHotkeySnapshot()
}

func (a *App) ClearBucket(bucket string) error {
	return a.svc.ClearBucket(bucket)
}

func (a *App) History(limit int) ([]ipcapi.HistoryEntry, error) {
	return a.svc.History(a.ctx, limit)
}

func (a *App) ShowWindow() {
	if a.ctx == nil {
		return
	}
	runtime.WindowShow(a.ctx)
	runtime.WindowUnminimise(a.ctx)
}

func (a *App) ExitApp() {
	if a.ctx != nil {
		runtime.Quit(a.ctx)
	}
}
