package doctor

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/streamctl/internal/config"
	"github.com/rbright/streamctl/internal/ctlserver"
	"github.com/rbright/streamctl/internal/health"
	"github.com/rbright/streamctl/internal/ipc"
	"github.com/rbright/streamctl/internal/protocol"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "/run/user/1000")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.HasPrefix(v, "/run") },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func startControlServer(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ctlserver.Serve(ctx, listener, ctlserver.HandlerFunc(func(_ context.Context, cmd protocol.Command) string {
			if cmd.Verb() == protocol.VerbGetStat {
				return "FPS 72"
			}
			return ""
		}))
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return listener.Addr().String()
}

func TestCheckControlEndpointSuccess(t *testing.T) {
	cfg := config.Default().Control
	cfg.Address = startControlServer(t)

	check := checkControlEndpoint(context.Background(), cfg)
	require.True(t, check.Pass, check.Message)
	require.Equal(t, "control.tcp", check.Name)
	require.Contains(t, check.Message, "answered GetStat")
}

func closedAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func TestCheckControlEndpointUnreachable(t *testing.T) {
	cfg := config.Default().Control
	cfg.Address = closedAddr(t)
	check := checkControlEndpoint(context.Background(), cfg)
	require.False(t, check.Pass)
}

func TestCheckWatcherWithoutRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	check, _, running := checkWatcher(context.Background())
	require.True(t, check.Pass)
	require.False(t, running)
	require.Contains(t, check.Message, "skipped")
}

func TestCheckWatcherNotRunning(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	check, _, running := checkWatcher(context.Background())
	require.True(t, check.Pass)
	require.False(t, running)
	require.Equal(t, "no watcher running", check.Message)
}

func TestRunIncludesHealthWhenWatcherRunning(t *testing.T) {
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	socket, err := net.Listen("unix", filepath.Join(runtimeDir, "streamctl.sock"))
	require.NoError(t, err)
	healthListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ipcDone := make(chan error, 1)
	go func() {
		ipcDone <- ipc.Serve(ctx, socket, ipc.HandlerFunc(func(context.Context, ipc.Request) ipc.Response {
			return ipc.Response{OK: true, State: "discovering", Body: `{"status":"connected","phase":"discovering"}`}
		}))
	}()
	reporter := health.NewReporter()
	reporter.SetServing(true)
	healthDone := make(chan error, 1)
	go func() { healthDone <- reporter.Serve(ctx, healthListener) }()
	defer func() {
		cancel()
		require.NoError(t, <-ipcDone)
		require.NoError(t, <-healthDone)
	}()

	loaded := config.Loaded{Path: "/tmp/config.jsonc", Config: config.Default(), Exists: true}
	loaded.Config.Control.Address = closedAddr(t)
	loaded.Config.Health.Listen = healthListener.Addr().String()

	report := Run(context.Background(), loaded)
	require.True(t, report.OK(), report.String())
	text := report.String()
	require.Contains(t, text, "watcher is running")
	require.Contains(t, text, "via watcher: connected (discovering)")
	require.Contains(t, text, "streamctl.control reports SERVING")
}

func TestCheckControlViaWatcherReportsHalt(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "streamctl.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(func(_ context.Context, req ipc.Request) ipc.Response {
			require.Equal(t, ipc.CommandStatus, req.Command)
			return ipc.Response{OK: true, Body: `{"status":"connected","phase":"halted","error":"protocol violation in GetConfig response: bad"}`}
		}))
	}()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	check := checkControlViaWatcher(context.Background(), config.Default().Control, socketPath)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "halted")
	require.Contains(t, check.Message, "protocol violation")
}
