package snapshot

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"SaveGuard/internal/fsutil"
	"SaveGuard/internal/restore"
)

// Restore replaces the live profile directory with target after taking a
// closed_manual backup of the current state. It refuses to run while the
// game is running or when the presence check itself fails.
func (m *Manager) Restore(ctx context.Context, target Record) (*Record, error) {
	cfg := m.Config()
	l := m.lockFor(cfg)
	l.Lock()
	defer l.Unlock()

	ctx, span := tracer.Start(ctx, "snapshot.Restore", trace.WithAttributes(
		attribute.String("snapshot_id", target.ID),
		attribute.String("bucket", string(target.Bucket)),
		attribute.Int("profile", cfg.Profile),
	))
	defer span.End()

	running, err := m.presence.Running(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("restore: presence check failed: %w", err), "presence check")
	}
	if running {
		return nil, fail(span, ErrProcessActive, "process active")
	}
	if target.Path == "" || !fsutil.Exists(target.Path) {
		return nil, fail(span, fmt.Errorf("%w: %s", ErrTargetMissing, target.Path), "target missing")
	}

	backup, err := m.captureLocked(ctx, cfg, CaptureRequest{
		Bucket: BucketClosedManual,
		Reason: ReasonPreRestoreBackup,
		// pruning now could delete target when it is the oldest record
		keepAll: true,
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("%w: %w", ErrBackupFailed, err), "backup failed")
	}
	if backup == nil {
		return nil, fail(span, ErrBackupFailed, "backup failed")
	}

	defer m.applyRetention(m.storeFor(cfg), BucketClosedManual)

	swap := restore.NewEngine(m.probe, m.logger)
	err = swap.Swap(ctx, restore.Plan{
		Live:    cfg.ProfileDir(),
		Source:  target.Path,
		Exclude: []string{MetaFile},
	})
	if err != nil {
		return nil, fail(span, err, "swap failed")
	}

	m.logger.Info("restore complete",
		"bucket", target.Bucket, "snapshot_id", target.ID, "backup", backup.ID, "profile", cfg.Profile)
	return backup, nil
}
