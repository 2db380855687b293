package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadLiveSession reads, schema-validates and semantically validates a
// LiveSession manifest.
func LoadLiveSession(filename string) (*LiveSessionConfig, error) {
	data, err := os.ReadFile(filename) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := ParseLiveSession(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// ParseLiveSession parses manifest bytes. Schema validation runs first so
// structural errors are reported together.
func ParseLiveSession(data []byte) (*LiveSessionConfig, error) {
	if err := ValidateLiveSession(data); err != nil {
		return nil, err
	}

	var cfg LiveSessionConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
