// Package manifest fingerprints a directory tree.
//
// A Manifest maps every regular file below a root (slash-separated relative
// path) to its size, modification time and, optionally, an xxh3-128 content
// hash. Digest folds a manifest into one hex string in sorted-path order so two
// walks of an unmodified tree always agree.
package manifest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/zeebo/xxh3"
)

// ErrDirectoryMissing is returned by Build when the root does not exist.
var ErrDirectoryMissing = errors.New("manifest: directory missing")

// BlockSize is the read size used when hashing file contents.
const BlockSize = 1 << 20

// Entry describes one file.
type Entry struct {
	Size      int64  `json:"size"`
	ModTimeNS int64  `json:"mtime_ns"`
	Hash      string `json:"hash,omitempty"`
}

// Manifest maps relative paths to entries.
type Manifest map[string]Entry

// Build walks root and records every regular file. Directories are not
// entries. With includeHash set each file is streamed through xxh3.
func Build(root string, includeHash bool) (Manifest, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryMissing, root)
		}
		return nil, fmt.Errorf("manifest: stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryMissing, root)
	}

	out := Manifest{}
	buf := make([]byte, BlockSize)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		e := Entry{Size: fi.Size(), ModTimeNS: fi.ModTime().UnixNano()}
		if includeHash {
			e.Hash, err = hashFile(path, buf)
			if err != nil {
				return err
			}
		}
		out[filepath.ToSlash(rel)] = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("manifest: walk %s: %w", root, err)
	}
	return out, nil
}

func hashFile(path string, buf []byte) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:]), nil
}

// Paths returns the manifest's paths in sorted order.
func (m Manifest) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// TotalSize sums the sizes of all entries.
func (m Manifest) TotalSize() int64 {
	var total int64
	for _, e := range m {
		total += e.Size
	}
	return total
}

// Digest folds path, size, mtime and hash of every entry, in sorted path
// order, into a single hex digest.
func Digest(m Manifest) string {
	h := xxh3.New()
	line := make([]byte, 0, 256)
	for _, p := range m.Paths() {
		e := m[p]
		line = line[:0]
		line = append(line, p...)
		line = append(line, '|')
		line = strconv.AppendInt(line, e.Size, 10)
		line = append(line, '|')
		line = strconv.AppendInt(line, e.ModTimeNS, 10)
		line = append(line, '|')
		line = append(line, e.Hash...)
		line = append(line, '\n')
		_, _ = h.Write(line)
	}
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:])
}

// Equal reports whether a and b have the same paths and identical entries,
// modification times included.
func Equal(a, b Manifest) bool {
	if len(a) != len(b) {
		return false
	}
	for p, ea := range a {
		eb, ok := b[p]
		if !ok || ea != eb {
			return false
		}
	}
	return true
}

// EqualForCopy reports whether copied holds the same files as source with the
// same sizes and hashes. Modification times are ignored.
func EqualForCopy(source, copied Manifest) bool {
	if len(source) != len(copied) {
		return false
	}
	for p, es := range source {
		ec, ok := copied[p]
		if !ok {
			return false
		}
		if es.Size != ec.Size || es.Hash != ec.Hash {
			return false
		}
	}
	return true
}
