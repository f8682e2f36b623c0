package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*ConsoleConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Project config has the highest precedence.
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.runconsole/config.json
// Project: .runconsole/config.json (relative to cwd)
func LoadDefault() (*ConsoleConfig, error) {
	globalPath, err := GlobalPath()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	return Load(globalPath, ProjectPath())
}

// overlay is the on-disk shape. Sections stay raw so that only the fields a
// file mentions replace the current values.
type overlay struct {
	ActiveServer *string                 `json:"active_server"`
	Servers      map[string]ServerConfig `json:"servers"`
	Logs         json.RawMessage         `json:"logs"`
	Layout       json.RawMessage         `json:"layout"`
	Run          json.RawMessage         `json:"run"`
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Server profiles merge by name; sections merge field by field.
func mergeConfigFile(base *ConsoleConfig, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded overlay
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.ActiveServer != nil {
		base.ActiveServer = *loaded.ActiveServer
	}
	if base.Servers == nil {
		base.Servers = make(map[string]ServerConfig)
	}
	for name, server := range loaded.Servers {
		base.Servers[name] = server
	}

	sections := []struct {
		name string
		raw  json.RawMessage
		dst  any
	}{
		{"logs", loaded.Logs, &base.Logs},
		{"layout", loaded.Layout, &base.Layout},
		{"run", loaded.Run, &base.Run},
	}
	for _, s := range sections {
		if len(s.raw) == 0 || string(s.raw) == "null" {
			continue
		}
		if err := json.Unmarshal(s.raw, s.dst); err != nil {
			return fmt.Errorf("parsing %s section of %s: %w", s.name, path, err)
		}
	}

	return nil
}
