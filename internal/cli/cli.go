package cli

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

type Command string

const (
	CommandWatch      Command = "watch"
	CommandStatus     Command = "status"
	CommandSend       Command = "send"
	CommandConnect    Command = "connect"
	CommandDisconnect Command = "disconnect"
	CommandSet        Command = "set"
	CommandSetBuffer  Command = "set-buffer"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

// arity bounds positional arguments after the command; max < 0 means unbounded.
type arity struct {
	min, max int
	usage    string
}

var validCommands = map[Command]arity{
	CommandWatch:      {0, 0, ""},
	CommandStatus:     {0, 0, ""},
	CommandSend:       {1, -1, "VERB [ARGS...]"},
	CommandConnect:    {1, 1, "ADDRESS"},
	CommandDisconnect: {0, 0, ""},
	CommandSet:        {2, 2, "KEY VALUE"},
	CommandSetBuffer:  {1, 1, "KB"},
	CommandDoctor:     {0, 0, ""},
	CommandVersion:    {0, 0, ""},
	CommandHelp:       {0, 0, ""},
}

type Parsed struct {
	Command    Command
	Args       []string
	ConfigPath string
	JSON       bool
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	fs := pflag.NewFlagSet("streamctl", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)

	var (
		parsed      Parsed
		showHelp    bool
		showVersion bool
	)
	fs.StringVar(&parsed.ConfigPath, "config", "", "config file path")
	fs.BoolVar(&parsed.JSON, "json", false, "print status as JSON")
	fs.BoolVarP(&showHelp, "help", "h", false, "show help")
	fs.BoolVar(&showVersion, "version", false, "show version")

	if err := fs.Parse(args); err != nil {
		return Parsed{}, err
	}
	if fs.Changed("config") && parsed.ConfigPath == "" {
		return Parsed{}, fmt.Errorf("--config requires a path")
	}

	switch {
	case showHelp:
		parsed.Command = CommandHelp
		parsed.ShowHelp = true
		return parsed, nil
	case showVersion:
		parsed.Command = CommandVersion
		return parsed, nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		parsed.Command = CommandHelp
		parsed.ShowHelp = true
		return parsed, nil
	}

	cmd := Command(rest[0])
	bounds, ok := validCommands[cmd]
	if !ok {
		return Parsed{}, fmt.Errorf("unknown command: %s", rest[0])
	}

	positional := rest[1:]
	if len(positional) < bounds.min || (bounds.max >= 0 && len(positional) > bounds.max) {
		if bounds.usage == "" {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q", cmd)
		}
		return Parsed{}, fmt.Errorf("usage: %s %s", cmd, bounds.usage)
	}

	parsed.Command = cmd
	parsed.Args = append([]string(nil), positional...)
	parsed.ShowHelp = cmd == CommandHelp
	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--json] <command> [args]

Commands:
  watch              Run the poll loop and serve the socket, feed and health endpoints
  status             Print connection status, active session and known peers
  send VERB [ARGS]   Send a raw control command and print the response
  connect ADDRESS    Connect the server to a discovered peer
  disconnect         Disconnect the active peer
  set KEY VALUE      Change one server setting
  set-buffer KB      Change the buffer size (100-2000 kB)
  doctor             Run configuration and connectivity checks
  version            Print version information
  help               Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/streamctl/config.jsonc)
  --json          Print status as JSON
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
