package restore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SaveGuard/internal/decoder"
	"SaveGuard/internal/manifest"
)

// fileProbe treats a directory as valid when its game state file exists and
// does not contain the word CORRUPT.
type fileProbe struct{}

func (fileProbe) ReadInRaid(_ context.Context, dir string) (*bool, error) {
	b, err := os.ReadFile(filepath.Join(dir, decoder.GameStateFile))
	if err != nil || strings.Contains(string(b), "CORRUPT") {
		return nil, decoder.ErrNotDecodable
	}
	v := false
	return &v, nil
}

func write(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func setup(t *testing.T, snap map[string]string) Plan {
	base := t.TempDir()
	live := filepath.Join(base, "profile_0")
	src := filepath.Join(base, "snap")
	write(t, live, map[string]string{decoder.GameStateFile: "live", "roster.json": "live-roster"})
	write(t, src, snap)
	return Plan{Live: live, Source: src, Exclude: []string{"meta.json"}}
}

func TestSwap(t *testing.T) {
	plan := setup(t, map[string]string{decoder.GameStateFile: "snap", "town.json": "t", "meta.json": "{}"})

	e := NewEngine(fileProbe{}, nil)
	require.NoError(t, e.Swap(context.Background(), plan))

	m, err := manifest.Build(plan.Live, true)
	require.NoError(t, err)
	assert.Equal(t, []string{decoder.GameStateFile, "town.json"}, m.Paths())
	assert.NoDirExists(t, plan.Live+newSuffix)
	assert.NoDirExists(t, plan.Live+oldSuffix)
}

func TestSwap_ValidationFailureRollsBack(t *testing.T) {
	plan := setup(t, map[string]string{decoder.GameStateFile: "CORRUPT"})
	before, err := manifest.Build(plan.Live, true)
	require.NoError(t, err)

	err = NewEngine(fileProbe{}, nil).Swap(context.Background(), plan)
	require.ErrorIs(t, err, ErrValidationFailed)

	after, err := manifest.Build(plan.Live, true)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NoDirExists(t, plan.Live+newSuffix)
	assert.NoDirExists(t, plan.Live+oldSuffix)
}

func TestSwap_FailureBetweenRenames(t *testing.T) {
	plan := setup(t, map[string]string{decoder.GameStateFile: "snap"})
	before, err := manifest.Build(plan.Live, true)
	require.NoError(t, err)

	boom := errors.New("boom")
	e := NewEngine(fileProbe{}, nil)
	e.afterDetach = func() error { return boom }

	err = e.Swap(context.Background(), plan)
	require.ErrorIs(t, err, boom)

	after, err := manifest.Build(plan.Live, true)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSwap_StagingFailureLeavesLiveUntouched(t *testing.T) {
	plan := setup(t, nil)
	plan.Source = filepath.Join(t.TempDir(), "missing")
	before, err := manifest.Build(plan.Live, true)
	require.NoError(t, err)

	require.Error(t, NewEngine(fileProbe{}, nil).Swap(context.Background(), plan))

	after, err := manifest.Build(plan.Live, true)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
