// SPDX-License-Identifier: MIT
package config

import (
	"context"
	"fmt"
	"os"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	applog "github.com/imSoTn/audioreact/internal/log"
)

// configCandidates are the paths searched, in order, when no explicit
// config path is given.
var configCandidates = []string{
	"audioreact.yaml",
	"config.yaml",
}

// Load builds the effective configuration: built-in defaults, overlaid by
// the YAML file at path (or the first candidate found when path is empty),
// overlaid by AUDIOREACT_* environment variables, then validated. A missing
// candidate file is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range configCandidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: loaded %s", path)
	}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
