package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return "streamctl " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// LogAttrs returns build metadata as slog key/value pairs.
func LogAttrs() []any {
	return []any{"version", Version, "commit", Commit, "go", runtime.Version()}
}
