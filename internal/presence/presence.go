// Package presence answers whether the game process is running.
package presence

import (
	"context"
	"strings"
)

// Checker reports whether the owning process is currently running. It is
// polled on every monitor tick and must be cheap. Errors are returned, never
// folded into "not running"; callers decide whether that is tolerable.
type Checker interface {
	Running(ctx context.Context) (bool, error)
}

// Func adapts a plain function to Checker.
type Func func(ctx context.Context) (bool, error)

func (f Func) Running(ctx context.Context) (bool, error) { return f(ctx) }

// ProcessChecker looks for a process by executable name, case-insensitively.
type ProcessChecker struct {
	Name string
}

func NewProcessChecker(name string) *ProcessChecker {
	return &ProcessChecker{Name: name}
}

func (p *ProcessChecker) Running(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return processRunning(ctx, p.Name)
}

// Watch calls onChange whenever a process named like p.Name starts or stops,
// until ctx is done. Where the platform has no notification source it returns
// immediately and the monitor falls back to polling alone.
func (p *ProcessChecker) Watch(ctx context.Context, onChange func()) {
	watchProcess(ctx, p.Name, onChange)
}

func sameImage(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
