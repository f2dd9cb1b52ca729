package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// FileConfig is the optional on-disk configuration layer. It carries the
// operator-managed whitelist and blocked patterns, which can change at
// runtime (see Watcher) unlike the environment snapshot.
type FileConfig struct {
	AllowedDirectories []string `toml:"allowed_directories"`
	BlockedPatterns    []string `toml:"blocked_patterns"`
	Policy             string   `toml:"policy,omitempty"`
}

// LoadFile reads and parses a TOML configuration file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc FileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &fc, nil
}
