// Package session drives poll cycles against the control channel and exposes each
// outcome as a structured Result.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rbright/streamctl/internal/fsm"
	"github.com/rbright/streamctl/internal/logging"
	"github.com/rbright/streamctl/internal/monitor"
	"github.com/rbright/streamctl/internal/protocol"
	"github.com/rbright/streamctl/internal/registry"
)

// DefaultCooldownCycles is the number of cycles suppressed after an auto-connect attempt.
const DefaultCooldownCycles = 5

var (
	// ErrCycleInProgress is returned when a cycle is requested while another one runs.
	ErrCycleInProgress = errors.New("poll cycle already in progress")
	// ErrPolicyRejected marks connect requests declined by policy.
	ErrPolicyRejected = errors.New("connect rejected by policy")
)

// Channel is the command path used for queries and connect requests.
type Channel interface {
	Send(context.Context, protocol.Command) (protocol.Response, error)
}

// StatusSource classifies the control session once per cycle.
type StatusSource interface {
	Refresh(context.Context) monitor.Status
	LastError() error
}

// Options tunes controller policy.
type Options struct {
	Logger         *slog.Logger
	AutoConnect    bool
	CooldownCycles int
}

// Controller owns the status, session and peer state of the engine.
type Controller struct {
	logger         *slog.Logger
	channel        Channel
	monitor        StatusSource
	registry       *registry.Registry
	cycling        *semaphore.Weighted
	cooldownCycles int

	mu          sync.RWMutex
	phase       fsm.State
	autoConnect bool
	cooldown    int
	last        Result
	terminal    error
}

// NewController wires a controller. A nil registry starts empty.
func NewController(ch Channel, status StatusSource, reg *registry.Registry, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if reg == nil {
		reg = registry.New()
	}
	cooldown := opts.CooldownCycles
	if cooldown <= 0 {
		cooldown = DefaultCooldownCycles
	}

	return &Controller{
		logger:         logger.With("component", "session"),
		channel:        ch,
		monitor:        status,
		registry:       reg,
		cycling:        semaphore.NewWeighted(1),
		cooldownCycles: cooldown,
		phase:          fsm.StateDown,
		autoConnect:    opts.AutoConnect,
		last:           Result{Status: monitor.StatusDown, Phase: fsm.StateDown, Peers: []registry.Peer{}},
	}
}

// Phase returns the current engine phase.
func (c *Controller) Phase() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Snapshot returns the most recent cycle result.
func (c *Controller) Snapshot() Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Err returns the terminal error once the controller has halted.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.terminal
}

func (c *Controller) SetAutoConnect(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.autoConnect != enabled {
		c.logger.Info("auto-connect policy changed", "enabled", enabled)
	}
	c.autoConnect = enabled
}

// Cycle runs one poll cycle end to end.
//
// Channel failures are recorded on the Result and never returned. A protocol
// violation halts the controller; this and every later call return it.
func (c *Controller) Cycle(ctx context.Context) (Result, error) {
	if !c.cycling.TryAcquire(1) {
		return Result{}, ErrCycleInProgress
	}
	defer c.cycling.Release(1)

	if err := c.Err(); err != nil {
		return c.Snapshot(), err
	}

	result := Result{StartedAt: time.Now()}
	result.Status = c.monitor.Refresh(ctx)
	if result.Status == monitor.StatusDown {
		result.Err = c.monitor.LastError()
		c.mu.Lock()
		result.Changes = c.registry.Reconcile(nil)
		c.cooldown = 0
		c.mu.Unlock()
		return c.finish(result, fsm.EventLost), nil
	}

	resp, err := c.channel.Send(ctx, protocol.GetConfig())
	if err != nil {
		result.Err = fmt.Errorf("query config: %w", err)
		return c.finish(result, ""), nil
	}

	snap := protocol.ParseSnapshot(resp)
	active, err := protocol.SessionFromSnapshot(snap)
	if err != nil {
		return c.halt(result, err)
	}
	result.Config = snap

	if active != nil {
		return c.streamingCycle(ctx, result, active), nil
	}
	return c.discoveryCycle(ctx, result)
}

func (c *Controller) streamingCycle(ctx context.Context, result Result, active *protocol.ActiveSession) Result {
	result.Session = active

	c.mu.Lock()
	if c.cooldown > 0 {
		c.cooldown--
	}
	c.mu.Unlock()

	resp, err := c.channel.Send(ctx, protocol.GetStat())
	if err != nil {
		result.Err = fmt.Errorf("query stats: %w", err)
	} else {
		result.Stats = protocol.ParseRows(resp)
	}
	return c.finish(result, fsm.EventStreaming)
}

func (c *Controller) discoveryCycle(ctx context.Context, result Result) (Result, error) {
	resp, err := c.channel.Send(ctx, protocol.GetRequests())
	if err != nil {
		result.Err = fmt.Errorf("query peers: %w", err)
		return c.finish(result, ""), nil
	}

	reports, err := protocol.ParseDiscovery(resp)
	if err != nil {
		return c.halt(result, err)
	}

	c.mu.Lock()
	result.Changes = c.registry.Reconcile(reports)
	c.mu.Unlock()

	result.AutoConnect = c.runAutoConnect(ctx, reports, &result)
	return c.finish(result, fsm.EventIdle), nil
}

// runAutoConnect checks the cooldown before decrementing it, so an attempt is
// followed by exactly cooldownCycles suppressed discovery cycles.
func (c *Controller) runAutoConnect(ctx context.Context, reports []protocol.PeerReport, result *Result) *AutoConnect {
	c.mu.Lock()
	if c.cooldown > 0 {
		c.cooldown--
		outcome := &AutoConnect{CooldownRemaining: c.cooldown}
		c.mu.Unlock()
		return outcome
	}
	if !c.autoConnect || len(reports) == 0 {
		c.mu.Unlock()
		return nil
	}

	first, _ := c.registry.Lookup(reports[0].Address)
	if !first.VersionCompatible {
		c.mu.Unlock()
		c.logger.Debug("auto-connect declined", "address", first.Address, "reason", "incompatible version")
		return &AutoConnect{Address: first.Address, Rejected: true, Reason: "incompatible version"}
	}
	c.cooldown = c.cooldownCycles
	remaining := c.cooldown
	c.mu.Unlock()

	c.logger.Info("auto-connecting", "address", first.Address)
	if _, err := c.channel.Send(ctx, protocol.Connect(first.Address)); err != nil {
		result.Err = fmt.Errorf("auto-connect %s: %w", first.Address, err)
	}
	return &AutoConnect{Attempted: true, Address: first.Address, CooldownRemaining: remaining}
}

func (c *Controller) finish(result Result, event fsm.Event) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if event != "" {
		next, err := fsm.Transition(c.phase, event)
		if err != nil {
			c.logger.Error("phase transition failed", "error", err.Error())
		} else {
			c.phase = next
		}
	}
	result.Phase = c.phase
	result.Peers = c.registry.Peers()
	result.FinishedAt = time.Now()
	c.last = result
	return result
}

func (c *Controller) halt(result Result, err error) (Result, error) {
	c.mu.Lock()
	c.terminal = err
	c.mu.Unlock()

	c.logger.Error("protocol violation, stopping poll loop", "error", err.Error())
	result.Err = err
	return c.finish(result, fsm.EventViolation), err
}

// Run drives cycles at a fixed interval until ctx ends or the controller halts.
// Ticks that fire while a cycle is running are dropped.
func (c *Controller) Run(ctx context.Context, interval time.Duration, sink func(Result)) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be > 0, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := c.Cycle(ctx)
		switch {
		case errors.Is(err, ErrCycleInProgress):
		case err != nil:
			if sink != nil {
				sink(result)
			}
			return err
		default:
			if sink != nil {
				sink(result)
			}
		}

		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Connect asks the server to connect to a known, version-compatible peer.
func (c *Controller) Connect(ctx context.Context, address string) (protocol.Response, error) {
	c.mu.RLock()
	peer, ok := c.registry.Lookup(address)
	c.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: unknown peer %s", ErrPolicyRejected, address)
	}
	if !peer.VersionCompatible {
		return "", fmt.Errorf("%w: peer %s reports an incompatible version", ErrPolicyRejected, address)
	}
	return c.Invoke(ctx, protocol.Connect(address))
}

// Invoke sends a raw command over the shared channel.
func (c *Controller) Invoke(ctx context.Context, cmd protocol.Command) (protocol.Response, error) {
	resp, err := c.channel.Send(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("invoke %s: %w", cmd.Verb(), err)
	}
	return resp, nil
}

// IsPolicyRejection reports whether err is a declined connect request.
func IsPolicyRejection(err error) bool {
	return errors.Is(err, ErrPolicyRejected)
}
