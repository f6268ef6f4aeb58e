package presence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunc(t *testing.T) {
	boom := errors.New("boom")
	c := Func(func(context.Context) (bool, error) { return false, boom })
	_, err := c.Running(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestProcessChecker_FindsSelf(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on /proc")
	}
	self := filepath.Base(os.Args[0])
	running, err := NewProcessChecker(self).Running(context.Background())
	require.NoError(t, err)
	assert.True(t, running)

	running, err = NewProcessChecker("definitely-not-running.exe").Running(context.Background())
	require.NoError(t, err)
	assert.False(t, running)
}

func TestProcessChecker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProcessChecker("x").Running(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
