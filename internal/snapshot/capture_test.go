package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SaveGuard/internal/decoder"
	"SaveGuard/internal/manifest"
	"SaveGuard/internal/presence"
)

func TestCapture_EndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	src, err := manifest.Build(f.live(), true)
	require.NoError(t, err)

	rec, err := f.mgr.Capture(ctx, CaptureRequest{Bucket: BucketClosedManual, Reason: ReasonManualClick})
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.True(t, rec.IntegrityOK)
	assert.Nil(t, rec.InRaid)
	assert.Equal(t, manifest.Digest(src), rec.SourceHash)
	assert.Equal(t, int64(len(`{"base_root":{"inraid":false}}`)+len("roster")+len("town-data")), rec.SizeBytes)
	assert.Equal(t, BucketClosedManual, rec.Bucket)
	assert.Contains(t, rec.ID, "_"+ReasonManualClick)

	list, err := f.mgr.List(BucketClosedManual, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec.ID, list[0].ID)
	assert.Equal(t, rec.SizeBytes, list[0].SizeBytes)
	assert.True(t, list[0].CreatedAt.Equal(rec.CreatedAt))

	copied, err := manifest.Build(rec.Path, true)
	require.NoError(t, err)
	delete(copied, MetaFile)
	assert.True(t, manifest.EqualForCopy(src, copied))
	assert.Empty(t, stagingLeftovers(t, f.cfg.SnapshotsRoot()))
}

func TestCapture_RecordsInRaidFlag(t *testing.T) {
	f := newFixture(t, nil)
	v := true
	rec, err := f.mgr.Capture(context.Background(), CaptureRequest{Bucket: BucketRuntimeHotkey, Reason: ReasonHotkey, InRaid: &v})
	require.NoError(t, err)

	meta, err := ReadMeta(rec.Path)
	require.NoError(t, err)
	require.NotNil(t, meta.InRaid)
	assert.True(t, *meta.InRaid)
}

func TestCapture_DedupeAgainstLatest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := CaptureRequest{Bucket: BucketRuntimePoll, Reason: ReasonPoll, Dedupe: true}

	first, err := f.mgr.Capture(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.mgr.Capture(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, second)

	list, err := f.mgr.List(BucketRuntimePoll, false)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	writeFiles(t, f.live(), map[string]string{"persist.roster.json": "roster-changed"})
	third, err := f.mgr.Capture(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, third)

	list, err = f.mgr.List(BucketRuntimePoll, false)
	require.NoError(t, err)
	require.Len(t, list, 1, "poll bucket keeps a single snapshot")
	assert.Equal(t, third.ID, list[0].ID)
}

func TestCapture_SourceMissing(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.RemoveAll(f.live()))

	_, err := f.mgr.Capture(context.Background(), CaptureRequest{Bucket: BucketClosedManual, Reason: ReasonManualClick})
	assert.ErrorIs(t, err, ErrSourceMissing)
}

func TestCapture_UnknownBucket(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.mgr.Capture(context.Background(), CaptureRequest{Bucket: "nope", Reason: ReasonManualClick})
	assert.ErrorIs(t, err, ErrUnknownBucket)
}

func TestCapture_ValidationFailureExhaustsRetries(t *testing.T) {
	f := newFixture(t, nil)
	writeFiles(t, f.live(), map[string]string{decoder.GameStateFile: "CORRUPT"})

	rec, err := f.mgr.Capture(context.Background(), CaptureRequest{Bucket: BucketClosedManual, Reason: ReasonManualClick})
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrCaptureFailed)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.EqualValues(t, 3, f.probe.calls.Load())

	assert.Empty(t, stagingLeftovers(t, f.cfg.SnapshotsRoot()))
	list, err := f.mgr.List(BucketClosedManual, true)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCapture_RetentionKeepsNewest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	cfg := f.mgr.Config()
	cfg.RetentionPerBucket = 2
	f.mgr.SetConfig(cfg)

	var ids []string
	for i := 0; i < 4; i++ {
		writeFiles(t, f.live(), map[string]string{"counter.txt": string(rune('a' + i))})
		rec, err := f.mgr.Capture(ctx, CaptureRequest{Bucket: BucketClosedManual, Reason: ReasonManualClick})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	list, err := f.mgr.List(BucketClosedManual, true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[3], list[0].ID)
	assert.Equal(t, ids[2], list[1].ID)
	assert.NoDirExists(t, filepath.Join(filepath.Dir(list[0].Path), ids[0]))
}

// appendByte grows path by one byte so the change shows up in the size even
// when the filesystem clock does not tick between writes.
func appendByte(t *testing.T, path string) {
	t.Helper()
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = fh.WriteString("+")
	require.NoError(t, err)
	require.NoError(t, fh.Close())
}

func TestCapture_IntegrityGates(t *testing.T) {
	tests := []struct {
		name       string
		afterQuiet func(t *testing.T, f *fixture)
		afterCopy  func(t *testing.T, f *fixture, staging string)
		want       error
	}{
		{
			name: "write during quiet window",
			afterQuiet: func(t *testing.T, f *fixture) {
				appendByte(t, filepath.Join(f.live(), "persist.roster.json"))
			},
			want: ErrSourceChanged,
		},
		{
			name: "write during copy",
			afterCopy: func(t *testing.T, f *fixture, _ string) {
				appendByte(t, filepath.Join(f.live(), "persist.roster.json"))
			},
			want: ErrSourceChangedDuringCopy,
		},
		{
			name: "corrupted copy",
			afterCopy: func(t *testing.T, _ *fixture, staging string) {
				writeFiles(t, staging, map[string]string{"nested/town.json": "bitrot"})
			},
			want: ErrCopyMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			attempts := 0
			if tt.afterQuiet != nil {
				f.mgr.afterQuiet = func() {
					attempts++
					tt.afterQuiet(t, f)
				}
			}
			if tt.afterCopy != nil {
				f.mgr.afterCopy = func(staging string) {
					attempts++
					tt.afterCopy(t, f, staging)
				}
			}

			rec, err := f.mgr.Capture(context.Background(), CaptureRequest{Bucket: BucketClosedManual, Reason: ReasonManualClick})
			require.Error(t, err)
			assert.Nil(t, rec)
			assert.ErrorIs(t, err, ErrCaptureFailed)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, f.cfg.IntegrityRetry, attempts)

			list, err := f.mgr.List(BucketClosedManual, true)
			require.NoError(t, err)
			assert.Empty(t, list)
			assert.Empty(t, stagingLeftovers(t, f.cfg.SnapshotsRoot()))
		})
	}
}

func TestCapture_RecoversAfterTransientChange(t *testing.T) {
	f := newFixture(t, nil)
	attempts := 0
	f.mgr.afterQuiet = func() {
		attempts++
		if attempts == 1 {
			writeFiles(t, f.live(), map[string]string{"persist.roster.json": "roster-mid-write"})
		}
	}

	rec, err := f.mgr.Capture(context.Background(), CaptureRequest{Bucket: BucketClosedManual, Reason: ReasonManualClick})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, attempts)

	src, err := manifest.Build(f.live(), true)
	require.NoError(t, err)
	assert.Equal(t, manifest.Digest(src), rec.SourceHash)
	assert.Empty(t, stagingLeftovers(t, f.cfg.SnapshotsRoot()))
}

func TestCapture_IDCollisionIsNotRetried(t *testing.T) {
	f := newFixture(t, nil)
	attempts := 0
	f.mgr.afterCopy = func(staging string) {
		attempts++
		final := filepath.Join(filepath.Dir(staging), strings.TrimPrefix(filepath.Base(staging), stagingPrefix))
		require.NoError(t, os.MkdirAll(final, 0o755))
	}

	rec, err := f.mgr.Capture(context.Background(), CaptureRequest{Bucket: BucketClosedManual, Reason: ReasonManualClick})
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrIDCollision)
	assert.NotErrorIs(t, err, ErrCaptureFailed)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, stagingLeftovers(t, f.cfg.SnapshotsRoot()))
}

func TestCapture_DedupeComparesNewestRecordEvenWithoutMeta(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := CaptureRequest{Bucket: BucketRuntimeHotkey, Reason: ReasonHotkey, Dedupe: true}

	first, err := f.mgr.Capture(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, first)

	// a newer directory without metadata hides the older matching record
	dir, err := f.mgr.Store().BucketDir(BucketRuntimeHotkey)
	require.NoError(t, err)
	writeFiles(t, filepath.Join(dir, "zzzz_unknown"), map[string]string{"persist.game.json": "x"})

	second, err := f.mgr.Capture(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.SourceHash, second.SourceHash)
}

func TestCapture_ExcludesConcurrentRestore(t *testing.T) {
	var presenceCalls atomic.Int32
	check := presence.Func(func(context.Context) (bool, error) {
		presenceCalls.Add(1)
		return false, nil
	})
	f := newFixture(t, check)
	ctx := context.Background()

	target, err := f.mgr.Capture(ctx, CaptureRequest{Bucket: BucketClosedManual, Reason: ReasonManualClick})
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.mgr.afterCopy = func(string) {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	captured := make(chan error, 1)
	go func() {
		_, err := f.mgr.Capture(ctx, CaptureRequest{Bucket: BucketRuntimeHotkey, Reason: ReasonHotkey})
		captured <- err
	}()
	<-entered

	restored := make(chan error, 1)
	go func() {
		_, err := f.mgr.Restore(ctx, *target)
		restored <- err
	}()

	assert.Never(t, func() bool { return presenceCalls.Load() > 0 }, 200*time.Millisecond, 10*time.Millisecond)
	close(release)

	require.NoError(t, <-captured)
	require.NoError(t, <-restored)
	assert.Equal(t, int32(1), presenceCalls.Load())
}
