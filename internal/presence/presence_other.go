//go:build !windows

package presence

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// processRunning scans /proc. The game usually runs under a compatibility
// layer, so both the kernel comm name and the first argv entry (which may be
// a Windows-style path) are compared.
func processRunning(ctx context.Context, name string) (bool, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return false, fmt.Errorf("presence: read /proc: %w", err)
	}
	comm := name
	if len(comm) > 15 {
		comm = comm[:15]
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if !e.IsDir() || !isPID(e.Name()) {
			continue
		}
		dir := filepath.Join("/proc", e.Name())
		if raw, err := os.ReadFile(filepath.Join(dir, "comm")); err == nil && sameImage(string(raw), comm) {
			return true, nil
		}
		raw, err := os.ReadFile(filepath.Join(dir, "cmdline"))
		if err != nil || len(raw) == 0 {
			continue
		}
		argv0 := string(bytes.SplitN(raw, []byte{0}, 2)[0])
		argv0 = argv0[strings.LastIndexAny(argv0, `/\`)+1:]
		if sameImage(argv0, name) {
			return true, nil
		}
	}
	return false, nil
}

func watchProcess(ctx context.Context, _ string, _ func()) {}

func isPID(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
