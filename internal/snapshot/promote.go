package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"SaveGuard/internal/fsutil"
)

// PromoteLatestPoll turns the newest polling snapshot created at or before
// cutoff into the pre-raid anchor. The previous anchor loses its flag once
// the new one is published, and the polling bucket is emptied. A nil record means there was nothing to
// promote.
func (m *Manager) PromoteLatestPoll(ctx context.Context, cutoff time.Time) (*Record, error) {
	cfg := m.Config()
	l := m.lockFor(cfg)
	l.Lock()
	defer l.Unlock()

	_, span := tracer.Start(ctx, "snapshot.PromoteLatestPoll", trace.WithAttributes(
		attribute.Int("profile", cfg.Profile),
	))
	defer span.End()

	store := m.storeFor(cfg)
	polls, err := store.List(BucketRuntimePoll, false)
	if err != nil {
		return nil, fail(span, err, "list polls")
	}
	var src *Record
	for i := range polls {
		if !polls[i].CreatedAt.After(cutoff) {
			src = &polls[i]
			break
		}
	}
	if src == nil {
		return nil, nil
	}

	anchors, err := store.List(BucketPreRaidAuto, false)
	if err != nil {
		return nil, fail(span, err, "list anchors")
	}

	dstDir, err := store.BucketDir(BucketPreRaidAuto)
	if err != nil {
		return nil, fail(span, err, "unknown bucket")
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fail(span, err, "create bucket")
	}
	id := m.ids.New(ReasonPreRaidAuto)
	staging := filepath.Join(dstDir, stagingPrefix+id)
	defer os.RemoveAll(staging)

	if err := fsutil.CopyTree(src.Path, staging, nil); err != nil {
		return nil, fail(span, fmt.Errorf("copy %s: %w", src.ID, err), "copy")
	}
	if m.afterCopy != nil {
		m.afterCopy(staging)
	}

	final := filepath.Join(dstDir, id)
	promoted := *src
	promoted.ID = id
	promoted.Bucket = BucketPreRaidAuto
	promoted.Reason = ReasonPreRaidAuto
	promoted.PreRaidAnchor = true
	promoted.Path = final
	if err := WriteMeta(staging, promoted); err != nil {
		return nil, fail(span, err, "write meta")
	}
	if fsutil.Exists(final) {
		return nil, fail(span, fmt.Errorf("%w: %s", ErrIDCollision, final), "id collision")
	}
	if err := os.Rename(staging, final); err != nil {
		return nil, fail(span, err, "publish")
	}
	for _, a := range anchors {
		if !a.PreRaidAnchor {
			continue
		}
		a.PreRaidAnchor = false
		if err := WriteMeta(a.Path, a); err != nil {
			return nil, fail(span, fmt.Errorf("unflag anchor %s: %w", a.ID, err), "unflag anchor")
		}
	}

	m.applyRetention(store, BucketPreRaidAuto)
	if err := store.Clear(BucketRuntimePoll); err != nil {
		m.logger.Warn("clear poll bucket failed", "error", err)
	}

	span.SetAttributes(attribute.String("snapshot_id", promoted.ID), attribute.String("from", src.ID))
	m.logger.Info("pre-raid snapshot promoted", "snapshot_id", promoted.ID, "from", src.ID, "profile", cfg.Profile)
	return &promoted, nil
}
