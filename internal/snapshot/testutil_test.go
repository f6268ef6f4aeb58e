package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SaveGuard/internal/decoder"
	"SaveGuard/internal/policy"
	"SaveGuard/internal/presence"
)

// fileProbe accepts a directory whose game state file exists and does not
// contain CORRUPT.
type fileProbe struct{ calls atomic.Int32 }

func (p *fileProbe) ReadInRaid(_ context.Context, dir string) (*bool, error) {
	p.calls.Add(1)
	b, err := os.ReadFile(filepath.Join(dir, decoder.GameStateFile))
	if err != nil || strings.Contains(string(b), "CORRUPT") {
		return nil, decoder.ErrNotDecodable
	}
	v := strings.Contains(string(b), `"inraid":true`)
	return &v, nil
}

func notRunning() presence.Checker {
	return presence.Func(func(context.Context) (bool, error) { return false, nil })
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

type fixture struct {
	cfg   policy.Config
	probe *fileProbe
	mgr   *Manager
	clock *fakeClock
}

func (f *fixture) live() string { return f.cfg.ProfileDir() }

type fakeClock struct{ t atomic.Int64 }

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.t.Store(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	return c
}

// Now advances by one second per call so records never share a timestamp.
func (c *fakeClock) Now() time.Time {
	return time.Unix(0, c.t.Add(int64(time.Second))).UTC()
}

func newFixture(t *testing.T, check presence.Checker) *fixture {
	t.Helper()
	base := t.TempDir()
	cfg := policy.DefaultConfig()
	cfg.SaveRoot = filepath.Join(base, "remote")
	cfg.SnapshotsDir = filepath.Join(base, "snapshots")
	cfg.QuietWindowMS = 0
	cfg.RetentionPerBucket = 5
	cfg.BaseDir = base

	writeFiles(t, cfg.ProfileDir(), map[string]string{
		decoder.GameStateFile: `{"base_root":{"inraid":false}}`,
		"persist.roster.json":  "roster",
		"nested/town.json":     "town-data",
	})

	if check == nil {
		check = notRunning()
	}
	probe := &fileProbe{}
	clock := newFakeClock()
	mgr := NewManager(cfg, probe, check, WithRetryWait(0), WithClock(clock.Now))
	return &fixture{cfg: mgr.Config(), probe: probe, mgr: mgr, clock: clock}
}

func stagingLeftovers(t *testing.T, root string) []string {
	t.Helper()
	var found []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() && strings.HasPrefix(d.Name(), stagingPrefix) {
			found = append(found, path)
		}
		return nil
	})
	return found
}
