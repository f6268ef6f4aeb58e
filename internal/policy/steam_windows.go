//go:build windows

package policy

import (
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows/registry"
)

const steamRegistryKey = `Software\Valve\Steam`

func steamPathFromRegistry() string {
	key, err := registry.OpenKey(registry.CURRENT_USER, steamRegistryKey, registry.QUERY_VALUE)
	if err != nil {
		return ""
	}
	defer key.Close()

	v, _, err := key.GetStringValue("SteamPath")
	if err != nil || strings.TrimSpace(v) == "" {
		return ""
	}
	return filepath.FromSlash(v)
}

func platformUserdataRoots() []string {
	return []string{`C:\Steam\userdata`}
}
