package ipc

// Commands served by the watcher socket.
const (
	CommandStatus  = "status"
	CommandSend    = "send"
	CommandConnect = "connect"
)

// Request is one CLI command. TimeoutMS is how long the client keeps waiting;
// the watcher stops working on the request once it passes.
type Request struct {
	Command   string   `json:"command"`
	Args      []string `json:"args,omitempty"`
	TimeoutMS int64    `json:"timeout_ms,omitempty"`
}

// Response carries the watcher phase in State. Body holds either the raw server
// response or a JSON-encoded cycle snapshot, depending on the command.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Body    string `json:"body,omitempty"`
	Error   string `json:"error,omitempty"`
}
