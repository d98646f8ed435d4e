package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is one resolved config: where it came from, the validated values, and
// warnings worth printing.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves the config location and reads it. A missing file is not an error:
// the defaults are returned with a warning and Exists unset.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded, err := LoadFile(resolvedPath)
	if errors.Is(err, os.ErrNotExist) {
		return Loaded{
			Path:   resolvedPath,
			Config: Default(),
			Warnings: []Warning{{
				Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
			}},
		}, nil
	}
	return loaded, err
}

// LoadFile reads path, which must exist. Hot reload uses it so that a file
// briefly missing during an editor save never resets the watcher to defaults.
func LoadFile(path string) (Loaded, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, warnings, err := Parse(string(content), Default())
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return Loaded{Path: path, Config: cfg, Warnings: warnings, Exists: true}, nil
}
