package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Control: ControlConfig{
			Network:          "tcp",
			Address:          "127.0.0.1:9944",
			DialTimeoutMS:    1000,
			CommandTimeoutMS: 800,
			LivenessCommand:  "GetStat",
		},
		Poll: PollConfig{
			IntervalMS:     1000,
			AutoConnect:    false,
			CooldownCycles: 5,
		},
		Feed:   ListenConfig{Listen: ""},
		Health: ListenConfig{Listen: ""},
		Log: LogConfig{
			Level:     "info",
			MaxSizeKB: 10 * 1024,
			MaxRolls:  3,
		},
	}
}
