package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a configuration file. The result is not defaulted or validated:
// callers merge command-line overrides first and then call ApplyDefaults and
// Validate.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	return parse(absPath, data)
}

func parse(source string, data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", source, err)
	}
	if raw != nil {
		if err := validateAgainstSchema(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var cfg Config
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: decode: %w", source, err)
	}

	cfg.PIDFile = os.ExpandEnv(cfg.PIDFile)
	for i, arg := range cfg.Command {
		cfg.Command[i] = os.ExpandEnv(arg)
	}
	for i, arg := range cfg.Log {
		cfg.Log[i] = os.ExpandEnv(arg)
	}
	return &cfg, nil
}
