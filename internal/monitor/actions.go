package monitor

import (
	"context"
	"errors"
	"fmt"

	"SaveGuard/internal/events"
	"SaveGuard/internal/snapshot"
)

// TriggerManualClosedSnapshot saves the live profile into closed_manual. It
// is refused while the game runs.
func (m *Monitor) TriggerManualClosedSnapshot(ctx context.Context) (*snapshot.Record, error) {
	rec, err := m.manualClosed(ctx)
	if err != nil {
		m.setError(fmt.Sprintf("manual snapshot failed: %v", err))
		return nil, err
	}
	m.bus.Emit(events.SnapshotCreated(*rec))
	return rec, nil
}

func (m *Monitor) manualClosed(ctx context.Context) (*snapshot.Record, error) {
	running, err := m.presence.Running(ctx)
	if err != nil {
		return nil, fmt.Errorf("presence check failed: %w", err)
	}
	if running {
		return nil, fmt.Errorf("%w: closed-game save is disabled", snapshot.ErrProcessActive)
	}
	rec, err := m.mgr.Capture(ctx, snapshot.CaptureRequest{
		Bucket: snapshot.BucketClosedManual,
		Reason: snapshot.ReasonManualClick,
		InRaid: m.readInRaidBestEffort(ctx),
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("manual snapshot skipped unexpectedly")
	}
	return rec, nil
}

// TriggerHotkeySnapshot saves the live profile into runtime_hotkey. It is
// ignored, without error, when the game is not running.
func (m *Monitor) TriggerHotkeySnapshot(ctx context.Context) (*snapshot.Record, error) {
	running, err := m.presence.Running(ctx)
	if err != nil {
		return nil, fmt.Errorf("presence check failed: %w", err)
	}
	if !running {
		m.bus.Emit(events.Info("game not running, F5 snapshot ignored"))
		return nil, nil
	}
	rec, err := m.mgr.Capture(ctx, snapshot.CaptureRequest{
		Bucket: snapshot.BucketRuntimeHotkey,
		Reason: snapshot.ReasonHotkey,
		InRaid: m.readInRaidBestEffort(ctx),
	})
	if err != nil {
		return nil, err
	}
	if rec != nil {
		m.bus.Emit(events.SnapshotCreated(*rec))
	}
	return rec, nil
}

// Restore swaps target into the live profile and reports the backup taken
// before the swap.
func (m *Monitor) Restore(ctx context.Context, target snapshot.Record) (*snapshot.Record, error) {
	backup, err := m.mgr.Restore(ctx, target)
	if err != nil {
		m.setError(fmt.Sprintf("restore failed: %v", err))
		return nil, err
	}
	m.bus.Emit(events.RestoreDone(target, *backup))
	return backup, nil
}

func (m *Monitor) readInRaidBestEffort(ctx context.Context) *bool {
	v, err := m.dec.ReadInRaid(ctx, m.mgr.Config().ProfileDir())
	if err != nil {
		m.logger.Debug("inraid read failed", "error", err)
		return nil
	}
	return v
}
