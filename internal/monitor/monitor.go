// Package monitor classifies the control session as connected or down once per poll cycle.
package monitor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rbright/streamctl/internal/logging"
	"github.com/rbright/streamctl/internal/protocol"
)

// Status is the connection state exposed to consumers.
type Status string

const (
	StatusDown      Status = "down"
	StatusConnected Status = "connected"
)

// Channel is the monitor-facing subset of the command channel.
type Channel interface {
	ConnectIfNeeded(context.Context) error
	Send(context.Context, protocol.Command) (protocol.Response, error)
}

// Monitor refreshes status by reconnecting opportunistically and probing liveness.
type Monitor struct {
	channel  Channel
	liveness protocol.Command
	logger   *slog.Logger

	mu      sync.Mutex
	status  Status
	lastErr error
}

// New builds a monitor. A zero liveness command defaults to GetStat.
func New(ch Channel, liveness protocol.Command, logger *slog.Logger) *Monitor {
	if liveness.Verb() == "" {
		liveness = protocol.GetStat()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Monitor{
		channel:  ch,
		liveness: liveness,
		logger:   logger.With("component", "monitor"),
		status:   StatusDown,
	}
}

// Refresh reconnects if needed and probes liveness. It never fails; any channel
// error is reported as StatusDown.
func (m *Monitor) Refresh(ctx context.Context) Status {
	next, err := m.probe(ctx)

	m.mu.Lock()
	prev := m.status
	m.status = next
	m.lastErr = err
	m.mu.Unlock()

	if prev != next {
		if err != nil {
			m.logger.Warn("control session status changed", "from", prev, "to", next, "error", err.Error())
		} else {
			m.logger.Info("control session status changed", "from", prev, "to", next)
		}
	}
	return next
}

func (m *Monitor) probe(ctx context.Context) (Status, error) {
	if err := m.channel.ConnectIfNeeded(ctx); err != nil {
		return StatusDown, err
	}
	if _, err := m.channel.Send(ctx, m.liveness); err != nil {
		return StatusDown, err
	}
	return StatusConnected, nil
}

// Status returns the result of the most recent refresh.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastError returns the failure behind the most recent DOWN result, if any.
func (m *Monitor) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}
