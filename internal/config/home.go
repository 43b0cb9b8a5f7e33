package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the annobatch home directory.
const HomeEnv = "ANNOBATCH_HOME"

// Home returns the annobatch home directory
// Priority order:
//  1. ANNOBATCH_HOME environment variable (if set)
//  2. .annobatch in the current working directory
//
// The directory is not created; writers create what they need.
func Home() (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return home, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return filepath.Join(cwd, ".annobatch"), nil
}

// Load resolves the configuration file and loads it. An explicit path must
// exist; otherwise <home>/config.yaml is used when present.
func Load(explicit string) (*Config, string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, "", fmt.Errorf("config file: %w", err)
		}
		cfg, err := LoadConfig(explicit)
		return cfg, explicit, err
	}
	home, err := Home()
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(home, "config.yaml")
	cfg, err := LoadConfig(path)
	return cfg, path, err
}
