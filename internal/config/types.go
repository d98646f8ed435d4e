// Package config resolves, parses, validates, and defaults streamctl configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by streamctl.
type Config struct {
	Control ControlConfig
	Poll    PollConfig
	Feed    ListenConfig
	Health  ListenConfig
	Log     LogConfig
}

// ControlConfig locates the streaming server's control endpoint.
type ControlConfig struct {
	Network          string
	Address          string
	DialTimeoutMS    int
	CommandTimeoutMS int
	LivenessCommand  string
}

// PollConfig controls the watcher's cycle cadence and auto-connect policy.
type PollConfig struct {
	IntervalMS     int
	AutoConnect    bool
	CooldownCycles int
}

// ListenConfig is an optional listener; an empty Listen disables it.
type ListenConfig struct {
	Listen string
}

// LogConfig controls the rotating JSONL log sink.
type LogConfig struct {
	Level     string
	MaxSizeKB int
	MaxRolls  int
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

func (c ControlConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMS) * time.Millisecond
}

func (c ControlConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMS) * time.Millisecond
}

func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMS) * time.Millisecond
}
