package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/streamctl/internal/logging"
)

// SocketName is the watcher socket file inside XDG_RUNTIME_DIR.
const SocketName = "streamctl.sock"

var ErrAlreadyRunning = errors.New("streamctl watcher already running")

// RuntimeSocketPath returns the watcher socket location for this user session.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, SocketName), nil
}

// AcquireOptions tunes stale-socket recovery in Acquire.
type AcquireOptions struct {
	ProbeTimeout time.Duration
	Retries      int
	Logger       *slog.Logger
}

// Acquire binds path for a single watcher. A socket answered by a live watcher
// yields ErrAlreadyRunning; a dead one is unlinked and the bind retried. A socket
// whose owner neither answers nor refuses is left in place.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (net.Listener, error) {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return listener, nil
		}
		if !isAddrInUse(err) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, opts.ProbeTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if probeErr != nil {
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, removeErr)
		}
		logger.Warn("removed stale watcher socket", "path", path, "attempt", attempt+1)

		if attempt < opts.Retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
			}
		}
	}

	return nil, fmt.Errorf("failed to acquire socket %s after %d retries", path, opts.Retries)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE) || strings.Contains(err.Error(), "address already in use")
}
