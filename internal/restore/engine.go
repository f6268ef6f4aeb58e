// Package restore swaps a snapshot tree into the live save directory.
//
// The new tree is staged next to the live dir as "<live>.__new", then two
// renames move live to "<live>.__old" and new to live. The swapped-in tree is
// re-validated; on any failure after live was moved aside the old tree is put
// back. Only the renames themselves are windows of inconsistency.
package restore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"SaveGuard/internal/decoder"
	"SaveGuard/internal/fsutil"
)

const (
	newSuffix = ".__new"
	oldSuffix = ".__old"
)

var (
	ErrValidationFailed = errors.New("restore: validation failed")
	ErrRollbackFailed   = errors.New("restore: rollback failed")
)

// Plan describes one swap.
type Plan struct {
	// Live is the directory being replaced.
	Live string
	// Source is the snapshot tree copied into place.
	Source string
	// Exclude lists top-level source entries not copied (the metadata file).
	Exclude []string
}

func (p Plan) newDir() string { return p.Live + newSuffix }
func (p Plan) oldDir() string { return p.Live + oldSuffix }

type Engine struct {
	probe  decoder.Probe
	logger *slog.Logger

	// afterDetach runs between the two renames.
	afterDetach func() error
}

func NewEngine(probe decoder.Probe, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{probe: probe, logger: logger}
}

// Swap replaces plan.Live with a copy of plan.Source. On error the live
// directory holds its original content unless the returned error also wraps
// ErrRollbackFailed.
func (e *Engine) Swap(ctx context.Context, plan Plan) (err error) {
	newDir, oldDir := plan.newDir(), plan.oldDir()
	if err := os.RemoveAll(newDir); err != nil {
		return fmt.Errorf("restore: clear staging: %w", err)
	}
	if err := os.RemoveAll(oldDir); err != nil {
		return fmt.Errorf("restore: clear previous backup dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(newDir); rmErr != nil {
			e.logger.Warn("restore staging cleanup failed", "dir", newDir, "error", rmErr)
		}
	}()

	detached := false
	defer func() {
		if err == nil || !detached {
			return
		}
		e.logger.Error("restore failed, rolling back", "live", plan.Live, "error", err)
		if rbErr := rollback(plan.Live, oldDir); rbErr != nil {
			e.logger.Error("rollback failed", "live", plan.Live, "error", rbErr)
			err = errors.Join(err, fmt.Errorf("%w: %v", ErrRollbackFailed, rbErr))
			return
		}
		e.logger.Info("rollback complete", "live", plan.Live)
	}()

	exclude := map[string]bool{}
	for _, name := range plan.Exclude {
		exclude[name] = true
	}
	err = fsutil.CopyTree(plan.Source, newDir, func(rel string, _ fs.DirEntry) bool {
		return exclude[rel]
	})
	if err != nil {
		return fmt.Errorf("restore: stage snapshot: %w", err)
	}

	if err := os.Rename(plan.Live, oldDir); err != nil {
		return fmt.Errorf("restore: move live aside: %w", err)
	}
	detached = true

	if e.afterDetach != nil {
		if err := e.afterDetach(); err != nil {
			return err
		}
	}
	if err := os.Rename(newDir, plan.Live); err != nil {
		return fmt.Errorf("restore: move snapshot into place: %w", err)
	}

	if err := decoder.Validate(ctx, e.probe, plan.Live); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	if err := os.RemoveAll(oldDir); err != nil {
		e.logger.Warn("old tree cleanup failed", "dir", oldDir, "error", err)
	}
	return nil
}

func rollback(live, oldDir string) error {
	if !fsutil.Exists(oldDir) {
		return fmt.Errorf("previous tree %s is gone", oldDir)
	}
	if err := os.RemoveAll(live); err != nil {
		return err
	}
	return os.Rename(oldDir, live)
}
