// Package logging configures runtime JSONL logging output.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrick/logrotate/rotator"
)

// Options controls level and rotation of the log sink.
type Options struct {
	Level     string
	MaxSizeKB int
	MaxRolls  int
}

// Runtime bundles the configured logger and its open file handle lifecycle.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New builds a JSONL logger rooted at the resolved state path. The file rolls
// over once it reaches MaxSizeKB, keeping MaxRolls old files.
func New(opts Options) (Runtime, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return Runtime{}, err
	}
	if opts.MaxSizeKB <= 0 {
		opts.MaxSizeKB = 10 * 1024
	}
	if opts.MaxRolls < 0 {
		opts.MaxRolls = 0
	}

	path, err := resolveLogPath()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, err
	}

	r, err := rotator.New(path, int64(opts.MaxSizeKB), false, opts.MaxRolls)
	if err != nil {
		return Runtime{}, fmt.Errorf("open log rotator: %w", err)
	}

	h := slog.NewJSONHandler(r, &slog.HandlerOptions{Level: level})
	logger := slog.New(h)
	return Runtime{Logger: logger, Path: path, closer: r}, nil
}

// ParseLevel maps a config level name to a slog level. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// resolveLogPath selects XDG_STATE_HOME when available, otherwise ~/.local/state.
func resolveLogPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "streamctl", "log.jsonl"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "streamctl", "log.jsonl"), nil
}
