// Package protocol models the line-oriented control protocol spoken by the local streaming server.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Wire verbs understood by the server.
const (
	VerbGetStat              = "GetStat"
	VerbGetConfig            = "GetConfig"
	VerbGetRequests          = "GetRequests"
	VerbConnect              = "Connect"
	VerbDisconnect           = "Disconnect"
	VerbSetConfig            = "SetConfig"
	VerbCapture              = "Capture"
	VerbSuspend              = "Suspend"
	VerbEnableTestMode       = "EnableTestMode"
	VerbEnableDriverTestMode = "EnableDriverTestMode"
	VerbSetDebugPos          = "SetDebugPos"
)

// ErrInvalidCommand reports a command that cannot be serialized onto one wire line.
var ErrInvalidCommand = errors.New("invalid command")

// Command is an immutable verb plus ordered arguments.
type Command struct {
	verb string
	args []string
}

// NewCommand builds a command. Validity is checked by Validate before it hits the wire.
func NewCommand(verb string, args ...string) Command {
	return Command{verb: verb, args: append([]string(nil), args...)}
}

// ParseCommand splits one raw line into a command on whitespace.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty command line", ErrInvalidCommand)
	}
	cmd := NewCommand(fields[0], fields[1:]...)
	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// Verb returns the command verb.
func (c Command) Verb() string { return c.verb }

// Args returns a copy of the command arguments.
func (c Command) Args() []string { return append([]string(nil), c.args...) }

// Validate rejects tokens that would break single-line, space-delimited framing.
func (c Command) Validate() error {
	if c.verb == "" {
		return fmt.Errorf("%w: empty verb", ErrInvalidCommand)
	}
	if !isToken(c.verb) {
		return fmt.Errorf("%w: verb %q contains whitespace", ErrInvalidCommand, c.verb)
	}
	for i, arg := range c.args {
		if arg == "" {
			return fmt.Errorf("%w: %s argument %d is empty", ErrInvalidCommand, c.verb, i+1)
		}
		if !isToken(arg) {
			return fmt.Errorf("%w: %s argument %q contains whitespace", ErrInvalidCommand, c.verb, arg)
		}
	}
	return nil
}

// String renders the wire form without the trailing newline.
func (c Command) String() string {
	if len(c.args) == 0 {
		return c.verb
	}
	return c.verb + " " + strings.Join(c.args, " ")
}

func isToken(s string) bool {
	return !strings.ContainsAny(s, " \t\r\n\v\f")
}

func GetStat() Command     { return NewCommand(VerbGetStat) }
func GetConfig() Command   { return NewCommand(VerbGetConfig) }
func GetRequests() Command { return NewCommand(VerbGetRequests) }
func Disconnect() Command  { return NewCommand(VerbDisconnect) }
func Capture() Command     { return NewCommand(VerbCapture) }

// Connect asks the server to start streaming to the peer at address.
func Connect(address string) Command { return NewCommand(VerbConnect, address) }

// SetConfig updates one live server setting.
func SetConfig(key, value string) Command { return NewCommand(VerbSetConfig, key, value) }

// Suspend pauses or resumes streaming.
func Suspend(on bool) Command { return NewCommand(VerbSuspend, flag(on)) }

func EnableTestMode(mode int) Command {
	return NewCommand(VerbEnableTestMode, strconv.Itoa(mode))
}

func EnableDriverTestMode(mode int) Command {
	return NewCommand(VerbEnableDriverTestMode, strconv.Itoa(mode))
}

// SetDebugPos overrides the reported head position for debugging.
func SetDebugPos(enabled bool, x, y, z float64) Command {
	return NewCommand(VerbSetDebugPos, flag(enabled), formatFloat(x), formatFloat(y), formatFloat(z))
}

func flag(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
