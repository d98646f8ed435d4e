package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/streamctl/internal/cli"
	"github.com/rbright/streamctl/internal/config"
	"github.com/rbright/streamctl/internal/doctor"
	"github.com/rbright/streamctl/internal/ipc"
	"github.com/rbright/streamctl/internal/logging"
	"github.com/rbright/streamctl/internal/protocol"
	"github.com/rbright/streamctl/internal/units"
	"github.com/rbright/streamctl/internal/version"
)

// bufferSizeKey is the server setting holding the client receive buffer in bytes.
const bufferSizeKey = "clientRecvBufferSize"

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("streamctl"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("streamctl"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(logging.Options{
		Level:     cfgLoaded.Config.Log.Level,
		MaxSizeKB: cfgLoaded.Config.Log.MaxSizeKB,
		MaxRolls:  cfgLoaded.Config.Log.MaxRolls,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	cfg := cfgLoaded.Config
	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandWatch:
		return r.commandWatch(ctx, cfgLoaded, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx, cfg, logger, parsed.JSON)
	case cli.CommandSend:
		cmd, err := protocol.ParseCommand(strings.Join(parsed.Args, " "))
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 2
		}
		return r.commandSend(ctx, cfg, logger, cmd)
	case cli.CommandDisconnect:
		return r.commandSend(ctx, cfg, logger, protocol.Disconnect())
	case cli.CommandSet:
		cmd := protocol.SetConfig(parsed.Args[0], parsed.Args[1])
		if err := cmd.Validate(); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 2
		}
		return r.commandSend(ctx, cfg, logger, cmd)
	case cli.CommandSetBuffer:
		kb, err := units.ParseBufferKB(parsed.Args[0])
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 2
		}
		fmt.Fprintf(r.Stdout, "buffer size %d kB (slider %d)\n", kb, units.SliderFromBufferKB(kb))
		return r.commandSend(ctx, cfg, logger, protocol.SetConfig(bufferSizeKey, fmt.Sprint(units.BufferBytesFromKB(kb))))
	case cli.CommandConnect:
		return r.commandConnect(ctx, cfg, logger, parsed.Args[0])
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandStatus(ctx context.Context, cfg config.Config, logger *slog.Logger, asJSON bool) int {
	body, handled, err := r.forward(ctx, cfg, ipc.Request{Command: ipc.CommandStatus})
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		return r.printStatus(body, asJSON)
	}

	engine := newDirectEngine(cfg, logger)
	defer engine.Close()

	result, err := engine.controller.Cycle(ctx)
	snapshot, encodeErr := encodeResult(result)
	if encodeErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", encodeErr)
		return 1
	}
	code := r.printStatus(snapshot, asJSON)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return code
}

func (r Runner) commandSend(ctx context.Context, cfg config.Config, logger *slog.Logger, cmd protocol.Command) int {
	body, handled, err := r.forward(ctx, cfg, ipc.Request{Command: ipc.CommandSend, Args: commandTokens(cmd)})
	if !handled {
		engine := newDirectEngine(cfg, logger)
		defer engine.Close()

		var resp protocol.Response
		if err = engine.channel.ConnectIfNeeded(ctx); err == nil {
			resp, err = engine.controller.Invoke(ctx, cmd)
		}
		body = resp.Text()
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if body != "" {
		fmt.Fprintln(r.Stdout, body)
	}
	return 0
}

// commandConnect runs one discovery cycle in direct mode so the connect policy
// can check the target against freshly reported peers.
func (r Runner) commandConnect(ctx context.Context, cfg config.Config, logger *slog.Logger, address string) int {
	body, handled, err := r.forward(ctx, cfg, ipc.Request{Command: ipc.CommandConnect, Args: []string{address}})
	if !handled {
		engine := newDirectEngine(cfg, logger)
		defer engine.Close()

		result, cycleErr := engine.controller.Cycle(ctx)
		switch {
		case cycleErr != nil:
			err = cycleErr
		case result.Err != nil:
			err = result.Err
		default:
			var resp protocol.Response
			resp, err = engine.controller.Connect(ctx, address)
			body = resp.Text()
		}
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if body != "" {
		fmt.Fprintln(r.Stdout, body)
	}
	return 0
}

// forward sends req to a running watcher. handled is false when no watcher owns
// the runtime socket and the caller should talk to the server directly.
func (r Runner) forward(ctx context.Context, cfg config.Config, req ipc.Request) (string, bool, error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return "", false, nil
	}
	resp, handled, err := tryForward(ctx, socketPath, req, forwardTimeout(cfg))
	return resp.Body, handled, err
}

// forwardTimeout leaves room for the watcher to finish an in-flight cycle command
// before running the forwarded one.
func forwardTimeout(cfg config.Config) time.Duration {
	return 2*cfg.Control.CommandTimeout() + cfg.Control.DialTimeout() + 250*time.Millisecond
}

func commandTokens(cmd protocol.Command) []string {
	return append([]string{cmd.Verb()}, cmd.Args()...)
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
