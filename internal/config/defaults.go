package config

import (
	"os"
	"path/filepath"

	"github.com/aristath/runconsole/internal/layout"
)

// DefaultServerName is the profile used when none is selected.
const DefaultServerName = "local"

// DefaultConfig returns the default configuration with a single local server.
func DefaultConfig() *ConsoleConfig {
	opts := layout.DefaultOptions()
	return &ConsoleConfig{
		ActiveServer: DefaultServerName,
		Servers: map[string]ServerConfig{
			DefaultServerName: {
				BaseURL: "http://localhost:8000",
			},
		},
		Logs: LogsConfig{
			Capacity:        500,
			BacklogLimit:    200,
			ReconnectBaseMS: 1000,
			MaxAttempts:     5,
		},
		Layout: LayoutConfig{
			ColumnSpacing:    opts.ColumnSpacing,
			RowSpacing:       opts.RowSpacing,
			AggregationGroup: opts.AggregationGroup,
		},
		Run: RunConfig{
			OutputFormat: "json",
		},
	}
}

// Dir returns the per-user configuration directory, ~/.runconsole.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".runconsole"), nil
}

// GlobalPath returns ~/.runconsole/config.json.
func GlobalPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ProjectPath returns .runconsole/config.json relative to the working directory.
func ProjectPath() string {
	return filepath.Join(".runconsole", "config.json")
}

// HistoryPath returns the configured history database, or
// ~/.runconsole/history.db when unset.
func (c *ConsoleConfig) HistoryPath() (string, error) {
	if c.Run.HistoryPath != "" {
		return c.Run.HistoryPath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}
