// Package config provides configuration loading for the simulator.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "PATIENTSIM_"

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load assembles the configuration from three layers, lowest precedence
// first: built-in defaults, an optional YAML file, and PATIENTSIM_*
// environment variables.
//
// Environment variables map section and field through the first underscore:
//
//	PATIENTSIM_MODEL_PROVIDER       -> model.provider
//	PATIENTSIM_DIALOGUE_CONTEXT_TURNS -> dialogue.context_turns
//	PATIENTSIM_CREDENTIALS          -> credentials (comma separated)
//
// An empty path skips the file layer entirely.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if len(content) > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s too large: %d bytes (max %d)", path, len(content), maxConfigFileSize)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// PATIENTSIM_MODEL_MAX_TOKENS -> model.max_tokens: the section is
		// everything up to the first underscore, the rest stays a field name.
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
