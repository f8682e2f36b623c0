package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save persists the configuration to a JSON file.
// Creates parent directories if they don't exist. Files holding a server
// token are written owner-readable only.
func Save(cfg *ConsoleConfig, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	perm := os.FileMode(0644)
	for _, s := range cfg.Servers {
		if s.Token != "" {
			perm = 0600
			break
		}
	}

	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
