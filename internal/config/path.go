package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvPath names the environment override for the config location.
const EnvPath = "STREAMCTL_CONFIG"

// ResolvePath picks the config location: --config, then $STREAMCTL_CONFIG, then
// the XDG config dir, then ~/.config.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	if fromEnv := strings.TrimSpace(os.Getenv(EnvPath)); fromEnv != "" {
		return fromEnv, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "streamctl", "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "streamctl", "config.jsonc"), nil
}
