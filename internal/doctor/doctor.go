// Package doctor runs runtime readiness diagnostics for config, runtime dir, the
// control endpoint, and a running watcher.
package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rbright/streamctl/internal/channel"
	"github.com/rbright/streamctl/internal/config"
	"github.com/rbright/streamctl/internal/health"
	"github.com/rbright/streamctl/internal/ipc"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("%q not found; using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: message})

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir available for the watcher socket", "XDG_RUNTIME_DIR is empty; CLI commands cannot reach a watcher"))

	watcher, socketPath, running := checkWatcher(ctx)
	checks = append(checks, watcher)

	// A running watcher owns the control session; ask it instead of dialing a
	// second connection.
	if running {
		checks = append(checks, checkControlViaWatcher(ctx, cfg.Config.Control, socketPath))
	} else {
		checks = append(checks, checkControlEndpoint(ctx, cfg.Config.Control))
	}

	if cfg.Config.Health.Listen != "" && running {
		checks = append(checks, checkHealth(ctx, cfg.Config.Health.Listen))
	}

	return Report{Checks: checks}
}

const watcherRunning = "watcher is running"

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkWatcher reports whether a watcher owns the runtime socket. Absence is not a failure.
func checkWatcher(ctx context.Context) (Check, string, bool) {
	path, err := ipc.RuntimeSocketPath()
	if err != nil {
		return Check{Name: "watcher", Pass: true, Message: "skipped: " + err.Error()}, "", false
	}
	alive, err := ipc.Probe(ctx, path, 300*time.Millisecond)
	if err != nil {
		return Check{Name: "watcher", Pass: false, Message: err.Error()}, path, false
	}
	if !alive {
		return Check{Name: "watcher", Pass: true, Message: "no watcher running"}, path, false
	}
	return Check{Name: "watcher", Pass: true, Message: watcherRunning}, path, true
}

// watcherStatus is the subset of a forwarded status body the doctor reads.
type watcherStatus struct {
	Status string `json:"status"`
	Phase  string `json:"phase"`
	Error  string `json:"error"`
}

// checkControlViaWatcher reads the watcher's last cycle result for the control endpoint.
func checkControlViaWatcher(ctx context.Context, cfg config.ControlConfig, socketPath string) Check {
	name := "control." + cfg.Network
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus}, time.Second)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("query watcher: %v", err)}
	}
	if !resp.OK {
		return Check{Name: name, Pass: false, Message: "watcher: " + resp.Error}
	}

	var status watcherStatus
	if err := json.Unmarshal([]byte(resp.Body), &status); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("decode watcher status: %v", err)}
	}

	message := fmt.Sprintf("%s via watcher: %s (%s)", cfg.Address, status.Status, status.Phase)
	if status.Error != "" {
		message += ": " + status.Error
	}
	pass := status.Status == "connected" && status.Phase != "halted"
	return Check{Name: name, Pass: pass, Message: message}
}

// checkControlEndpoint dials the control endpoint and runs the liveness command once.
func checkControlEndpoint(ctx context.Context, cfg config.ControlConfig) Check {
	name := "control." + cfg.Network
	ch := channel.New(channel.Options{
		Network:        cfg.Network,
		Address:        cfg.Address,
		DialTimeout:    cfg.DialTimeout(),
		CommandTimeout: cfg.CommandTimeout(),
	})
	defer ch.Close()

	if err := ch.ConnectIfNeeded(ctx); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	liveness := cfg.Liveness()
	start := time.Now()
	if _, err := ch.Send(ctx, liveness); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s answered %s in %s", cfg.Address, liveness.Verb(), time.Since(start).Round(time.Millisecond))}
}

// checkHealth queries the watcher's gRPC health endpoint.
func checkHealth(ctx context.Context, target string) Check {
	status, err := health.Check(ctx, target, time.Second)
	if err != nil {
		return Check{Name: "health", Pass: false, Message: err.Error()}
	}
	return Check{Name: "health", Pass: true, Message: fmt.Sprintf("%s reports %s", health.Service, status.String())}
}
