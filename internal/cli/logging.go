package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LogFileName is written inside the configured logs directory.
const LogFileName = "saveguard.log"

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// newLogger logs to <logsDir>/saveguard.log, or to fallback when the file
// cannot be opened.
func newLogger(level, logsDir string, fallback io.Writer) (*slog.Logger, func(), error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if logsDir != "" {
		if err := os.MkdirAll(logsDir, 0o755); err == nil {
			f, err := os.OpenFile(filepath.Join(logsDir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err == nil {
				return slog.New(slog.NewTextHandler(f, opts)), func() { _ = f.Close() }, nil
			}
		}
	}
	return slog.New(slog.NewTextHandler(fallback, opts)), func() {}, nil
}
