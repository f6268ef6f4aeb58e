package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRecord(t *testing.T, s *Store, b Bucket, id string, at time.Time) Record {
	t.Helper()
	dir, err := s.BucketDir(b)
	require.NoError(t, err)
	path := filepath.Join(dir, id)
	writeFiles(t, path, map[string]string{"data.bin": id})
	rec := Record{ID: id, Bucket: b, Reason: ReasonManualClick, CreatedAt: at, IntegrityOK: true, SizeBytes: int64(len(id)), Path: path}
	require.NoError(t, WriteMeta(path, rec))
	return rec
}

func TestStore_ListOrderAndInvalid(t *testing.T) {
	s := NewStore(t.TempDir(), 2, 10, nil)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seedRecord(t, s, BucketClosedManual, "a", t0)
	seedRecord(t, s, BucketClosedManual, "c", t0.Add(2*time.Hour))
	seedRecord(t, s, BucketClosedManual, "b", t0.Add(time.Hour))

	dir, err := s.BucketDir(BucketClosedManual)
	require.NoError(t, err)
	assert.Contains(t, dir, "profile_2")
	writeFiles(t, filepath.Join(dir, "orphan"), map[string]string{"x": "12345"})
	writeFiles(t, filepath.Join(dir, stagingPrefix+"zzz"), map[string]string{"x": "1"})

	valid, err := s.List(BucketClosedManual, false)
	require.NoError(t, err)
	require.Len(t, valid, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{valid[0].ID, valid[1].ID, valid[2].ID})

	all, err := s.List(BucketClosedManual, true)
	require.NoError(t, err)
	require.Len(t, all, 4)
	var orphan *Record
	for i := range all {
		if all[i].ID == "orphan" {
			orphan = &all[i]
		}
	}
	require.NotNil(t, orphan)
	assert.True(t, orphan.Synthetic)
	assert.False(t, orphan.IntegrityOK)
	assert.False(t, orphan.Restorable())
	assert.Equal(t, ReasonUnknown, orphan.Reason)
	assert.Equal(t, int64(5), orphan.SizeBytes)
}

func TestStore_ListMissingBucketDir(t *testing.T) {
	s := NewStore(t.TempDir(), 0, 10, nil)
	recs, err := s.List(BucketPreRaidAuto, true)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStore_ApplyRetention(t *testing.T) {
	s := NewStore(t.TempDir(), 0, 2, nil)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d"} {
		seedRecord(t, s, BucketRuntimeHotkey, id, t0.Add(time.Duration(i)*time.Minute))
	}

	removed, err := s.ApplyRetention(BucketRuntimeHotkey)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	recs, err := s.List(BucketRuntimeHotkey, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, []string{recs[0].ID, recs[1].ID})
}

func TestStore_PollBucketCap(t *testing.T) {
	s := NewStore(t.TempDir(), 0, 50, nil)
	assert.Equal(t, 1, s.Cap(BucketRuntimePoll))
	assert.Equal(t, 50, s.Cap(BucketClosedManual))
}

func TestStore_ClearAndFind(t *testing.T) {
	s := NewStore(t.TempDir(), 0, 10, nil)
	t0 := time.Now().UTC()
	seedRecord(t, s, BucketRuntimePoll, "p1", t0)
	seedRecord(t, s, BucketPreRaidAuto, "anchor", t0)

	rec, err := s.Find("anchor")
	require.NoError(t, err)
	assert.Equal(t, BucketPreRaidAuto, rec.Bucket)

	_, err = s.Find("missing")
	assert.ErrorIs(t, err, ErrTargetMissing)

	require.NoError(t, s.Clear(BucketRuntimePoll))
	dir, _ := s.BucketDir(BucketRuntimePoll)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, s.Clear(BucketRuntimePoll))

	_, err = s.BucketDir("bogus")
	assert.ErrorIs(t, err, ErrUnknownBucket)
}

func TestParseBucketAndLabels(t *testing.T) {
	b, err := ParseBucket("pre_raid_auto")
	require.NoError(t, err)
	assert.Equal(t, BucketPreRaidAuto, b)
	assert.Equal(t, "Last save before raid", b.Label())

	_, err = ParseBucket("other")
	assert.ErrorIs(t, err, ErrUnknownBucket)

	assert.Equal(t, "Manual F5 save", ReasonLabel(ReasonHotkey))
	assert.Equal(t, "custom", ReasonLabel("custom"))
	assert.NotContains(t, VisibleBuckets, BucketRuntimePoll)
}

func TestIDGenerator_Monotonic(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewIDGenerator(func() time.Time { return fixed })
	prev := ""
	for i := 0; i < 100; i++ {
		id := g.New("poll")
		assert.Greater(t, id, prev)
		prev = id
	}
	assert.Contains(t, g.New("a b/c"), "_a_b_c")
}
