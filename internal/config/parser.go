package config

import (
	"errors"
	"strings"
)

// Parse reads configuration content as JSONC on top of base.
//
// Empty content yields base unchanged.
func Parse(content string, base Config) (Config, []Warning, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		validatedWarnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, validatedWarnings, nil
	}

	if !strings.HasPrefix(trimmed, "{") {
		return Config{}, nil, errors.New("config must be a JSONC object")
	}
	return parseJSONC(content, base)
}
