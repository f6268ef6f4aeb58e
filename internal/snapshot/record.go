package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MetaFile is written inside every published snapshot directory.
const MetaFile = "meta.json"

// Record describes one published snapshot.
type Record struct {
	ID            string    `json:"snapshot_id"`
	Bucket        Bucket    `json:"bucket"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
	Profile       int       `json:"profile"`
	InRaid        *bool     `json:"inraid_at_capture"`
	PreRaidAnchor bool      `json:"pre_raid_anchor"`
	IntegrityOK   bool      `json:"integrity_ok"`
	SourceHash    string    `json:"source_hash"`
	SizeBytes     int64     `json:"snapshot_size_bytes"`
	Path          string    `json:"path"`

	// Synthetic marks a directory listed without a readable metadata file.
	Synthetic bool `json:"-"`
}

// Restorable reports whether the record may be offered as a restore target
// without an explicit override.
func (r Record) Restorable() bool {
	return r.IntegrityOK && !r.Synthetic
}

func ReadMeta(dir string) (Record, error) {
	b, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("parse %s: %w", MetaFile, err)
	}
	return rec, nil
}

// WriteMeta writes rec into dir through a temp file and rename.
func WriteMeta(dir string, rec Record) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, MetaFile+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, MetaFile))
}
