package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func TestBuild_MissingDirectory(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "nope"), true)
	require.ErrorIs(t, err, ErrDirectoryMissing)
}

func TestBuild_RecordsRegularFilesOnly(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"persist.game.json":     "game",
		"nested/roster.json":    "roster-data",
		"nested/deep/town.json": "t",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	m, err := Build(root, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"nested/deep/town.json", "nested/roster.json", "persist.game.json"}, m.Paths())
	assert.Equal(t, int64(len("roster-data")), m["nested/roster.json"].Size)
	assert.NotEmpty(t, m["persist.game.json"].Hash)
	assert.Equal(t, int64(16), m.TotalSize())
}

func TestBuild_WithoutHash(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "1"})

	m, err := Build(root, false)
	require.NoError(t, err)
	assert.Empty(t, m["a"].Hash)
	assert.NotZero(t, m["a"].ModTimeNS)
}

func TestDigest_StableForUnchangedTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.json": "alpha", "b/c.json": "gamma"})

	first, err := Build(root, true)
	require.NoError(t, err)
	second, err := Build(root, true)
	require.NoError(t, err)

	assert.True(t, Equal(first, second))
	assert.Equal(t, Digest(first), Digest(second))
}

func TestDigest_ChangesWithContentAndSize(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.json": "alpha"})
	p := filepath.Join(root, "a.json")
	before, err := Build(root, true)
	require.NoError(t, err)
	info, err := os.Stat(p)
	require.NoError(t, err)

	// same size, different bytes, same mtime
	require.NoError(t, os.WriteFile(p, []byte("alphb"), 0o644))
	require.NoError(t, os.Chtimes(p, info.ModTime(), info.ModTime()))
	sameSize, err := Build(root, true)
	require.NoError(t, err)
	assert.NotEqual(t, Digest(before), Digest(sameSize))

	require.NoError(t, os.WriteFile(p, []byte("alpha-longer"), 0o644))
	require.NoError(t, os.Chtimes(p, info.ModTime(), info.ModTime()))
	grown, err := Build(root, true)
	require.NoError(t, err)
	assert.NotEqual(t, Digest(before), Digest(grown))
}

func TestEqualForCopy_IgnoresModTime(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"a": "same", "d/b": "bytes"})
	writeTree(t, dst, map[string]string{"a": "same", "d/b": "bytes"})
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dst, "a"), old, old))

	ms, err := Build(src, true)
	require.NoError(t, err)
	md, err := Build(dst, true)
	require.NoError(t, err)

	assert.False(t, Equal(ms, md))
	assert.True(t, EqualForCopy(ms, md))
}

func TestEqualForCopy_DetectsDifferences(t *testing.T) {
	base := Manifest{"a": {Size: 1, Hash: "x"}, "b": {Size: 2, Hash: "y"}}

	assert.False(t, EqualForCopy(base, Manifest{"a": {Size: 1, Hash: "x"}}))
	assert.False(t, EqualForCopy(base, Manifest{"a": {Size: 1, Hash: "x"}, "c": {Size: 2, Hash: "y"}}))
	assert.False(t, EqualForCopy(base, Manifest{"a": {Size: 1, Hash: "x"}, "b": {Size: 3, Hash: "y"}}))
	assert.False(t, EqualForCopy(base, Manifest{"a": {Size: 1, Hash: "x"}, "b": {Size: 2, Hash: "z"}}))
}
