package snapshot

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"SaveGuard/internal/fsutil"
)

const stagingPrefix = ".staging_"

// Store is the on-disk snapshot layout for one profile:
// <root>/<bucket>/profile_<n>/<id>/. It does no locking of its own; the
// Manager serialises mutations per profile.
type Store struct {
	root      string
	profile   int
	retention int
	logger    *slog.Logger
}

func NewStore(root string, profile, retention int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, profile: profile, retention: retention, logger: logger}
}

func (s *Store) BucketDir(b Bucket) (string, error) {
	if !b.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownBucket, b)
	}
	return filepath.Join(s.root, string(b), fmt.Sprintf("profile_%d", s.profile)), nil
}

// Cap is the retention cap of b.
func (s *Store) Cap(b Bucket) int {
	if b == BucketRuntimePoll {
		return pollCap
	}
	if s.retention < 1 {
		return 1
	}
	return s.retention
}

// List returns the records of one bucket, newest first. Directories without
// a usable metadata file and records that failed integrity are only returned
// when includeInvalid is set.
func (s *Store) List(b Bucket, includeInvalid bool) ([]Record, error) {
	dir, err := s.BucketDir(b)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		rec, err := ReadMeta(path)
		if err != nil {
			if !includeInvalid {
				continue
			}
			rec = s.synthetic(b, e, path)
		} else {
			// the directory is authoritative for where the record lives
			rec.Path = path
			if !includeInvalid && !rec.IntegrityOK {
				continue
			}
		}
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}

// ListVisible lists every user-visible bucket, newest first.
func (s *Store) ListVisible(includeInvalid bool) ([]Record, error) {
	var out []Record
	for _, b := range VisibleBuckets {
		recs, err := s.List(b, includeInvalid)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	sortNewestFirst(out)
	return out, nil
}

// Find looks a snapshot up by id across all buckets.
func (s *Store) Find(id string) (Record, error) {
	for _, b := range allBuckets {
		recs, err := s.List(b, true)
		if err != nil {
			return Record{}, err
		}
		for _, r := range recs {
			if r.ID == id {
				return r, nil
			}
		}
	}
	return Record{}, fmt.Errorf("%w: %s", ErrTargetMissing, id)
}

// Latest is the newest record of b, if any. Synthetic and failed records
// count; they carry no source hash, so dedupe never matches them.
func (s *Store) Latest(b Bucket) (Record, bool, error) {
	recs, err := s.List(b, true)
	if err != nil || len(recs) == 0 {
		return Record{}, false, err
	}
	return recs[0], true, nil
}

// ApplyRetention deletes everything past the bucket's cap and returns the
// number of removed snapshots.
func (s *Store) ApplyRetention(b Bucket) (int, error) {
	recs, err := s.List(b, true)
	if err != nil {
		return 0, err
	}
	limit := s.Cap(b)
	if len(recs) <= limit {
		return 0, nil
	}
	removed := 0
	for _, r := range recs[limit:] {
		if err := os.RemoveAll(r.Path); err != nil {
			return removed, fmt.Errorf("retention: remove %s: %w", r.Path, err)
		}
		removed++
	}
	s.logger.Debug("retention applied", "bucket", b, "profile", s.profile, "removed", removed)
	return removed, nil
}

// Clear removes the whole bucket directory of this profile.
func (s *Store) Clear(b Bucket) error {
	dir, err := s.BucketDir(b)
	if err != nil {
		return err
	}
	if !fsutil.Exists(dir) {
		return nil
	}
	return os.RemoveAll(dir)
}

func (s *Store) synthetic(b Bucket, e os.DirEntry, path string) Record {
	rec := Record{
		ID:        e.Name(),
		Bucket:    b,
		Reason:    ReasonUnknown,
		Profile:   s.profile,
		SizeBytes: fsutil.DirSize(path),
		Path:      path,
		Synthetic: true,
	}
	if info, err := e.Info(); err == nil {
		rec.CreatedAt = info.ModTime().UTC()
	}
	return rec
}

func sortNewestFirst(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
}
