package session

import (
	"encoding/json"
	"time"

	"github.com/rbright/streamctl/internal/fsm"
	"github.com/rbright/streamctl/internal/monitor"
	"github.com/rbright/streamctl/internal/protocol"
	"github.com/rbright/streamctl/internal/registry"
)

// AutoConnect describes what the auto-connect policy did during one discovery cycle.
type AutoConnect struct {
	Attempted         bool   `json:"attempted"`
	Address           string `json:"address,omitempty"`
	Rejected          bool   `json:"rejected,omitempty"`
	Reason            string `json:"reason,omitempty"`
	CooldownRemaining int    `json:"cooldown_remaining"`
}

// Result is the complete outcome of one Cycle.
type Result struct {
	Status      monitor.Status          `json:"status"`
	Phase       fsm.State               `json:"phase"`
	Session     *protocol.ActiveSession `json:"session,omitempty"`
	Config      protocol.Snapshot       `json:"config,omitempty"`
	Stats       []protocol.StatRow      `json:"stats,omitempty"`
	Changes     []registry.Event        `json:"changes,omitempty"`
	Peers       []registry.Peer         `json:"peers"`
	AutoConnect *AutoConnect            `json:"auto_connect,omitempty"`
	Err         error                   `json:"-"`
	StartedAt   time.Time               `json:"started_at"`
	FinishedAt  time.Time               `json:"finished_at"`
}

// MarshalJSON renders Err as a plain string.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(r)}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Halted reports whether the engine stopped on a protocol violation.
func (r Result) Halted() bool {
	return r.Phase == fsm.StateHalted
}
