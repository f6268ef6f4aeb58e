package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_ClampsInRaidInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StatePollIntervalMS = 2000
	cfg.InRaidPollIntervalMS = 500
	cfg.RetentionPerBucket = 0
	cfg.IntegrityRetry = -1

	n := cfg.Normalize()
	assert.Equal(t, 2000, n.InRaidPollIntervalMS)
	assert.Equal(t, 1, n.RetentionPerBucket)
	assert.Equal(t, 1, n.IntegrityRetry)
	require.NoError(t, n.Validate())
	assert.Equal(t, 2*time.Second, n.InRaidPollInterval())
}

func TestValidate_RejectsInRaidBelowPoll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InRaidPollIntervalMS = 10
	assert.Error(t, cfg.Validate())
}

func TestPaths_ResolveAgainstBaseDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseDir = filepath.FromSlash("/opt/saveguard")
	cfg.SaveRoot = filepath.FromSlash("/games/remote")
	cfg.Profile = 3

	assert.Equal(t, filepath.FromSlash("/games/remote/profile_3"), cfg.ProfileDir())
	assert.Equal(t, filepath.FromSlash("/opt/saveguard/snapshots"), cfg.SnapshotsRoot())
	assert.Equal(t, filepath.FromSlash("/opt/saveguard/logs/journal.db"), cfg.JournalPath())
}

func TestLoad_FileEnvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	saveRoot := filepath.Join(dir, "remote")
	require.NoError(t, os.MkdirAll(filepath.Join(saveRoot, "profile_2"), 0o755))
	body := "save_root: " + filepath.ToSlash(saveRoot) + "\nprofile: 2\nretention_per_bucket: 7\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "saveguard.yaml"), []byte(body), 0o644))
	t.Setenv("SAVEGUARD_QUIET_WINDOW_MS", "25")

	v := NewViper()
	cfg, used, err := Load(v, "", dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "saveguard.yaml"), used)
	assert.Equal(t, 2, cfg.Profile)
	assert.Equal(t, 7, cfg.RetentionPerBucket)
	assert.Equal(t, 25, cfg.QuietWindowMS)
	assert.Equal(t, 3, cfg.IntegrityRetry)
	assert.Equal(t, filepath.Join(saveRoot, "profile_2"), cfg.ProfileDir())
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, _, err := Load(NewViper(), filepath.Join(t.TempDir(), "absent.yaml"), ".")
	assert.Error(t, err)
}

func TestWriteDefault_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saveguard.yaml")
	require.NoError(t, WriteDefault(path))
	assert.Error(t, WriteDefault(path))

	cfg, _, err := Load(NewViper(), path, ".")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().RetentionPerBucket, cfg.RetentionPerBucket)
	assert.Equal(t, filepath.Dir(path), cfg.BaseDir)
}

func TestDiscoverProfilesAndSync(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"profile_4", "profile_1", "profile_x", "other"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "profile_9"), nil, 0o644))

	assert.Equal(t, []int{1, 4}, DiscoverProfiles(root))
	assert.True(t, SaveRootLooksValid(root))

	cfg := DefaultConfig()
	cfg.SaveRoot = root
	cfg.Profile = 7
	SyncProfileToExisting(&cfg)
	assert.Equal(t, 1, cfg.Profile)
}

func TestNormalizeSaveRoot(t *testing.T) {
	base := t.TempDir()
	remote := filepath.Join(base, "userdata", "12345", SteamAppID, "remote")
	require.NoError(t, os.MkdirAll(filepath.Join(remote, "profile_0"), 0o755))

	assert.Equal(t, remote, NormalizeSaveRoot(filepath.Join(remote, "profile_0")))
	assert.Equal(t, remote, NormalizeSaveRoot(remote))
	assert.Equal(t, remote, NormalizeSaveRoot(filepath.Join(base, "userdata", "12345", SteamAppID)))
	assert.Equal(t, remote, NormalizeSaveRoot(filepath.Join(base, "userdata", "12345")))
	assert.Equal(t, remote, NormalizeSaveRoot(filepath.Join(base, "userdata")))
}
