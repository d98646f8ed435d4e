package config

import (
	"fmt"
	"strings"

	"github.com/rbright/streamctl/internal/protocol"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch cfg.Control.Network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		return nil, fmt.Errorf("control.network must be one of: tcp, tcp4, tcp6, unix")
	}
	if strings.TrimSpace(cfg.Control.Address) == "" {
		return nil, fmt.Errorf("control.address must not be empty")
	}
	if cfg.Control.DialTimeoutMS <= 0 {
		return nil, fmt.Errorf("control.dial_timeout_ms must be > 0")
	}
	if cfg.Control.CommandTimeoutMS <= 0 {
		return nil, fmt.Errorf("control.command_timeout_ms must be > 0")
	}
	if _, err := protocol.ParseCommand(cfg.Control.LivenessCommand); err != nil {
		return nil, fmt.Errorf("control.liveness_command: %w", err)
	}

	if cfg.Poll.IntervalMS <= 0 {
		return nil, fmt.Errorf("poll.interval_ms must be > 0")
	}
	if cfg.Poll.CooldownCycles <= 0 {
		return nil, fmt.Errorf("poll.cooldown_cycles must be > 0")
	}
	if cfg.Control.CommandTimeoutMS > cfg.Poll.IntervalMS {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"control.command_timeout_ms=%d exceeds poll.interval_ms=%d; slow cycles will skip ticks",
			cfg.Control.CommandTimeoutMS, cfg.Poll.IntervalMS,
		)})
	}

	if cfg.Feed.Listen != "" && cfg.Feed.Listen == cfg.Health.Listen {
		return nil, fmt.Errorf("feed.listen and health.listen must differ")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	if cfg.Log.MaxSizeKB <= 0 {
		return nil, fmt.Errorf("log.max_size_kb must be > 0")
	}
	if cfg.Log.MaxRolls < 0 {
		return nil, fmt.Errorf("log.max_rolls must be >= 0")
	}

	return warnings, nil
}

// Liveness returns the parsed liveness probe, falling back to GetStat.
func (c ControlConfig) Liveness() protocol.Command {
	cmd, err := protocol.ParseCommand(c.LivenessCommand)
	if err != nil {
		return protocol.GetStat()
	}
	return cmd
}
