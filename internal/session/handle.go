package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rbright/streamctl/internal/ipc"
	"github.com/rbright/streamctl/internal/protocol"
)

// Handle serves watcher socket requests so CLI invocations share this controller's channel.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	state := string(c.Phase())

	switch req.Command {
	case ipc.CommandStatus:
		body, err := json.Marshal(c.Snapshot())
		if err != nil {
			return ipc.Response{OK: false, State: state, Error: fmt.Sprintf("encode status: %v", err)}
		}
		return ipc.Response{OK: true, State: state, Message: "status", Body: string(body)}
	case ipc.CommandSend:
		cmd, err := protocol.ParseCommand(strings.Join(req.Args, " "))
		if err != nil {
			return ipc.Response{OK: false, State: state, Error: err.Error()}
		}
		resp, err := c.Invoke(ctx, cmd)
		if err != nil {
			return ipc.Response{OK: false, State: state, Error: err.Error()}
		}
		return ipc.Response{OK: true, State: state, Message: cmd.Verb(), Body: resp.Text()}
	case ipc.CommandConnect:
		if len(req.Args) != 1 {
			return ipc.Response{OK: false, State: state, Error: "connect requires exactly one address"}
		}
		resp, err := c.Connect(ctx, req.Args[0])
		if err != nil {
			return ipc.Response{OK: false, State: state, Error: err.Error()}
		}
		return ipc.Response{OK: true, State: state, Message: "connect requested", Body: resp.Text()}
	default:
		return ipc.Response{OK: false, State: state, Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}
