package config

import (
	"encoding/json"
	"strings"
)

type jsoncConfig struct {
	Control *jsoncControl `json:"control"`
	Poll    *jsoncPoll    `json:"poll"`
	Feed    *jsoncListen  `json:"feed"`
	Health  *jsoncListen  `json:"health"`
	Log     *jsoncLog     `json:"log"`
}

type jsoncControl struct {
	Network          *string `json:"network"`
	Address          *string `json:"address"`
	DialTimeoutMS    *int    `json:"dial_timeout_ms"`
	CommandTimeoutMS *int    `json:"command_timeout_ms"`
	LivenessCommand  *string `json:"liveness_command"`
}

type jsoncPoll struct {
	IntervalMS     *int  `json:"interval_ms"`
	AutoConnect    *bool `json:"auto_connect"`
	CooldownCycles *int  `json:"cooldown_cycles"`
}

type jsoncListen struct {
	Listen *string `json:"listen"`
}

type jsoncLog struct {
	Level     *string `json:"level"`
	MaxSizeKB *int    `json:"max_size_kb"`
	MaxRolls  *int    `json:"max_rolls"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	payload.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) {
	if c := payload.Control; c != nil {
		setString(&cfg.Control.Network, c.Network)
		setString(&cfg.Control.Address, c.Address)
		setInt(&cfg.Control.DialTimeoutMS, c.DialTimeoutMS)
		setInt(&cfg.Control.CommandTimeoutMS, c.CommandTimeoutMS)
		setString(&cfg.Control.LivenessCommand, c.LivenessCommand)
	}

	if p := payload.Poll; p != nil {
		setInt(&cfg.Poll.IntervalMS, p.IntervalMS)
		if p.AutoConnect != nil {
			cfg.Poll.AutoConnect = *p.AutoConnect
		}
		setInt(&cfg.Poll.CooldownCycles, p.CooldownCycles)
	}

	if payload.Feed != nil {
		setString(&cfg.Feed.Listen, payload.Feed.Listen)
	}
	if payload.Health != nil {
		setString(&cfg.Health.Listen, payload.Health.Listen)
	}

	if l := payload.Log; l != nil {
		if l.Level != nil {
			cfg.Log.Level = strings.ToLower(strings.TrimSpace(*l.Level))
		}
		setInt(&cfg.Log.MaxSizeKB, l.MaxSizeKB)
		setInt(&cfg.Log.MaxRolls, l.MaxRolls)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
