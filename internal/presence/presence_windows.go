//go:build windows

package presence

import (
	"context"
	"fmt"
	"strings"

	"github.com/StackExchange/wmi"
)

type win32Process struct {
	ProcessID uint32
	Name      string
}

func processRunning(_ context.Context, name string) (bool, error) {
	var dst []win32Process
	q := fmt.Sprintf("SELECT ProcessID, Name FROM Win32_Process WHERE Name = '%s'", strings.ReplaceAll(name, "'", "''"))
	if err := wmi.Query(q, &dst); err != nil {
		return false, fmt.Errorf("presence: wmi query: %w", err)
	}
	for _, p := range dst {
		if sameImage(p.Name, name) {
			return true, nil
		}
	}
	return false, nil
}
