package policy

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SteamAppID is the Steam application whose remote storage holds the saves.
const SteamAppID = "262060"

var profileDirRe = regexp.MustCompile(`^profile_(\d+)$`)

// DiscoverProfiles lists the profile numbers present under saveRoot, sorted.
func DiscoverProfiles(saveRoot string) []int {
	entries, err := os.ReadDir(saveRoot)
	if err != nil {
		return nil
	}
	seen := map[int]bool{}
	var out []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := profileDirRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// SyncProfileToExisting moves cfg.Profile to the first discovered profile when
// the configured one does not exist under the save root.
func SyncProfileToExisting(cfg *Config) {
	if cfg.SaveRoot == "" {
		return
	}
	profiles := DiscoverProfiles(cfg.SaveRoot)
	if len(profiles) == 0 {
		return
	}
	for _, p := range profiles {
		if p == cfg.Profile {
			return
		}
	}
	cfg.Profile = profiles[0]
}

// SaveRootLooksValid reports whether path is a directory holding at least
// one profile or the steam_init.json marker.
func SaveRootLooksValid(path string) bool {
	if !dirExists(path) {
		return false
	}
	if len(DiscoverProfiles(path)) > 0 {
		return true
	}
	_, err := os.Stat(filepath.Join(path, "steam_init.json"))
	return err == nil
}

// NormalizeSaveRoot maps the directories a user is likely to pick (a profile
// dir, the remote dir, the app id dir, a Steam user dir, userdata) onto the
// remote dir that holds the profiles.
func NormalizeSaveRoot(path string) string {
	val := filepath.Clean(expandHome(path))
	name := filepath.Base(val)
	parent := filepath.Dir(val)

	switch {
	case profileDirRe.MatchString(name) && strings.EqualFold(filepath.Base(parent), "remote"):
		return absOr(parent)
	case strings.EqualFold(name, "remote"):
		return absOr(val)
	case name == SteamAppID && dirExists(filepath.Join(val, "remote")):
		return absOr(filepath.Join(val, "remote"))
	case isDigits(name) && dirExists(filepath.Join(val, SteamAppID, "remote")):
		return absOr(filepath.Join(val, SteamAppID, "remote"))
	case strings.EqualFold(name, "userdata"):
		matches, _ := filepath.Glob(filepath.Join(val, "*", SteamAppID, "remote"))
		var dirs []string
		for _, m := range matches {
			if dirExists(m) {
				dirs = append(dirs, m)
			}
		}
		if len(dirs) == 1 {
			return absOr(dirs[0])
		}
	}
	return absOr(val)
}

// FindSaveRootCandidates returns every remote dir under the known Steam
// userdata roots, best candidate first.
func FindSaveRootCandidates() []string {
	seen := map[string]bool{}
	var found []string
	for _, userdata := range steamUserdataRoots() {
		matches, _ := filepath.Glob(filepath.Join(userdata, "*", SteamAppID, "remote"))
		for _, m := range matches {
			if !dirExists(m) {
				continue
			}
			m = absOr(m)
			key := strings.ToLower(m)
			if seen[key] {
				continue
			}
			seen[key] = true
			found = append(found, m)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		si, ti := scoreSaveRoot(found[i])
		sj, tj := scoreSaveRoot(found[j])
		if si != sj {
			return si > sj
		}
		return ti > tj
	})
	return found
}

// DetectSaveRoot returns the best save root candidate or "".
func DetectSaveRoot() string {
	c := FindSaveRootCandidates()
	if len(c) == 0 {
		return ""
	}
	return c[0]
}

func scoreSaveRoot(path string) (int, int64) {
	score := len(DiscoverProfiles(path)) * 10
	if _, err := os.Stat(filepath.Join(path, "steam_init.json")); err == nil {
		score += 2
	}
	if dirExists(filepath.Join(path, "profile_0")) {
		score++
	}
	var mtime int64
	if st, err := os.Stat(path); err == nil {
		mtime = st.ModTime().UnixNano()
	}
	return score, mtime
}

func steamUserdataRoots() []string {
	var candidates []string
	if p := steamPathFromRegistry(); p != "" {
		candidates = append(candidates, filepath.Join(p, "userdata"))
	}
	if v := os.Getenv("ProgramFiles(x86)"); v != "" {
		candidates = append(candidates, filepath.Join(v, "Steam", "userdata"))
	}
	if v := os.Getenv("ProgramFiles"); v != "" {
		candidates = append(candidates, filepath.Join(v, "Steam", "userdata"))
	}
	candidates = append(candidates, platformUserdataRoots()...)

	seen := map[string]bool{}
	var out []string
	for _, c := range candidates {
		key := strings.ToLower(filepath.Clean(c))
		if seen[key] {
			continue
		}
		seen[key] = true
		if dirExists(c) {
			out = append(out, c)
		}
	}
	return out
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}

func absOr(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
