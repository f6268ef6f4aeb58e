//go:build !windows

package policy

import (
	"os"
	"path/filepath"
)

func steamPathFromRegistry() string { return "" }

func platformUserdataRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".steam", "steam", "userdata"),
		filepath.Join(home, ".local", "share", "Steam", "userdata"),
		filepath.Join(home, "Library", "Application Support", "Steam", "userdata"),
	}
}
