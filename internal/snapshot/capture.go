package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"SaveGuard/internal/decoder"
	"SaveGuard/internal/fsutil"
	"SaveGuard/internal/manifest"
	"SaveGuard/internal/policy"
)

type CaptureRequest struct {
	Bucket Bucket
	Reason string
	// InRaid is stored as-is in the record; nil means unknown.
	InRaid *bool
	// Dedupe skips the capture when the source digest equals the newest
	// record of the bucket.
	Dedupe bool

	// keepAll skips the retention pass after publishing.
	keepAll bool
}

// Capture copies the live profile directory into req.Bucket. A nil record
// with a nil error means the capture was skipped by dedupe.
func (m *Manager) Capture(ctx context.Context, req CaptureRequest) (*Record, error) {
	cfg := m.Config()
	l := m.lockFor(cfg)
	l.Lock()
	defer l.Unlock()
	return m.captureLocked(ctx, cfg, req)
}

func (m *Manager) captureLocked(ctx context.Context, cfg policy.Config, req CaptureRequest) (*Record, error) {
	ctx, span := tracer.Start(ctx, "snapshot.Capture", trace.WithAttributes(
		attribute.String("bucket", string(req.Bucket)),
		attribute.String("reason", req.Reason),
		attribute.Int("profile", cfg.Profile),
	))
	defer span.End()

	store := m.storeFor(cfg)
	bucketDir, err := store.BucketDir(req.Bucket)
	if err != nil {
		return nil, fail(span, err, "unknown bucket")
	}
	source := cfg.ProfileDir()
	if !fsutil.Exists(source) {
		return nil, fail(span, fmt.Errorf("%w: %s", ErrSourceMissing, source), "source missing")
	}

	tries := cfg.IntegrityRetry
	attempt := 0
	op := func() (*Record, error) {
		attempt++
		rec, err := m.captureAttempt(ctx, cfg, store, bucketDir, source, req)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, ErrIDCollision) {
			return nil, backoff.Permanent(err)
		}
		m.logger.Warn("capture attempt failed",
			"bucket", req.Bucket, "reason", req.Reason, "attempt", attempt, "of", tries, "error", err)
		return nil, err
	}

	rec, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(m.retryWait)),
		backoff.WithMaxTries(uint(tries)),
	)
	if err != nil {
		if errors.Is(err, ErrIDCollision) {
			return nil, fail(span, err, "id collision")
		}
		err = fmt.Errorf("%w after %d attempts: %w", ErrCaptureFailed, attempt, err)
		m.logger.Error("capture failed", "bucket", req.Bucket, "reason", req.Reason, "error", err)
		return nil, fail(span, err, "capture failed")
	}
	if rec == nil {
		span.SetAttributes(attribute.Bool("deduped", true))
		return nil, nil
	}
	span.SetAttributes(attribute.String("snapshot_id", rec.ID), attribute.Int64("size_bytes", rec.SizeBytes))
	m.logger.Info("snapshot created",
		"bucket", rec.Bucket, "snapshot_id", rec.ID, "reason", rec.Reason, "profile", rec.Profile, "size", rec.SizeBytes)
	return rec, nil
}

// captureAttempt is one try. Its staging directory never outlives the call.
func (m *Manager) captureAttempt(ctx context.Context, cfg policy.Config, store *Store, bucketDir, source string, req CaptureRequest) (*Record, error) {
	id := m.ids.New(req.Reason)
	staging := filepath.Join(bucketDir, stagingPrefix+id)
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			m.logger.Warn("staging cleanup failed", "dir", staging, "error", err)
		}
	}()

	quiet1, err := manifest.Build(source, false)
	if err != nil {
		return nil, err
	}
	if err := sleep(ctx, cfg.QuietWindow()); err != nil {
		return nil, err
	}
	if m.afterQuiet != nil {
		m.afterQuiet()
	}
	quiet2, err := manifest.Build(source, false)
	if err != nil {
		return nil, err
	}
	if !manifest.Equal(quiet1, quiet2) {
		return nil, ErrSourceChanged
	}

	before, err := manifest.Build(source, true)
	if err != nil {
		return nil, err
	}
	digest := manifest.Digest(before)
	if req.Dedupe {
		latest, ok, err := store.Latest(req.Bucket)
		if err != nil {
			return nil, err
		}
		if ok && latest.SourceHash == digest {
			m.logger.Debug("capture skipped, source unchanged", "bucket", req.Bucket, "snapshot_id", latest.ID)
			return nil, nil
		}
	}

	if err := os.MkdirAll(bucketDir, 0o755); err != nil {
		return nil, err
	}
	if err := fsutil.CopyTree(source, staging, nil); err != nil {
		return nil, fmt.Errorf("copy to staging: %w", err)
	}
	if m.afterCopy != nil {
		m.afterCopy(staging)
	}

	after, err := manifest.Build(source, true)
	if err != nil {
		return nil, err
	}
	if !manifest.Equal(before, after) {
		return nil, ErrSourceChangedDuringCopy
	}
	copied, err := manifest.Build(staging, true)
	if err != nil {
		return nil, err
	}
	if !manifest.EqualForCopy(before, copied) {
		return nil, ErrCopyMismatch
	}
	if err := decoder.Validate(ctx, m.probe, staging); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	final := filepath.Join(bucketDir, id)
	rec := &Record{
		ID:          id,
		Bucket:      req.Bucket,
		Reason:      req.Reason,
		CreatedAt:   m.now().UTC(),
		Profile:     cfg.Profile,
		InRaid:      req.InRaid,
		IntegrityOK: true,
		SourceHash:  digest,
		SizeBytes:   before.TotalSize(),
		Path:        final,
	}
	if err := WriteMeta(staging, *rec); err != nil {
		return nil, err
	}
	if fsutil.Exists(final) {
		return nil, fmt.Errorf("%w: %s", ErrIDCollision, final)
	}
	if err := os.Rename(staging, final); err != nil {
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}

	if !req.keepAll {
		m.applyRetention(store, req.Bucket)
	}
	return rec, nil
}

func (m *Manager) applyRetention(store *Store, b Bucket) {
	if _, err := store.ApplyRetention(b); err != nil {
		m.logger.Warn("retention failed", "bucket", b, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
