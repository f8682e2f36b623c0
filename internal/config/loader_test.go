package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		globalConfig  string
		projectConfig string
		expectServers int
		expectActive  string
		expectBaseURL string
		expectLogs    LogsConfig
		expectFormat  string
		expectError   bool
	}{
		{
			name:          "No config files - returns defaults",
			expectServers: 1,
			expectActive:  "local",
			expectBaseURL: "http://localhost:8000",
			expectLogs:    LogsConfig{Capacity: 500, BacklogLimit: 200, ReconnectBaseMS: 1000, MaxAttempts: 5},
			expectFormat:  "json",
		},
		{
			name:          "Global only - adds server and selects it",
			globalConfig:  `{"active_server":"staging","servers":{"staging":{"base_url":"https://staging.example.com"}}}`,
			expectServers: 2,
			expectActive:  "staging",
			expectBaseURL: "https://staging.example.com",
			expectLogs:    LogsConfig{Capacity: 500, BacklogLimit: 200, ReconnectBaseMS: 1000, MaxAttempts: 5},
			expectFormat:  "json",
		},
		{
			name:          "Project only - partial section keeps other defaults",
			projectConfig: `{"logs":{"capacity":50},"run":{"output_format":"csv"}}`,
			expectServers: 1,
			expectActive:  "local",
			expectBaseURL: "http://localhost:8000",
			expectLogs:    LogsConfig{Capacity: 50, BacklogLimit: 200, ReconnectBaseMS: 1000, MaxAttempts: 5},
			expectFormat:  "csv",
		},
		{
			name:          "Project overrides global",
			globalConfig:  `{"servers":{"local":{"base_url":"http://127.0.0.1:9000"}},"logs":{"max_attempts":3}}`,
			projectConfig: `{"servers":{"local":{"base_url":"http://127.0.0.1:9100"}},"logs":{"reconnect_base_ms":250}}`,
			expectServers: 1,
			expectActive:  "local",
			expectBaseURL: "http://127.0.0.1:9100",
			expectLogs:    LogsConfig{Capacity: 500, BacklogLimit: 200, ReconnectBaseMS: 250, MaxAttempts: 3},
			expectFormat:  "json",
		},
		{
			name:         "Malformed section",
			globalConfig: `{"logs":{"capacity":"lots"}}`,
			expectError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()

			globalPath := ""
			if tt.globalConfig != "" {
				globalPath = filepath.Join(tmpDir, "global.json")
				if err := os.WriteFile(globalPath, []byte(tt.globalConfig), 0644); err != nil {
					t.Fatalf("writing global config: %v", err)
				}
			}

			projectPath := ""
			if tt.projectConfig != "" {
				projectPath = filepath.Join(tmpDir, "project.json")
				if err := os.WriteFile(projectPath, []byte(tt.projectConfig), 0644); err != nil {
					t.Fatalf("writing project config: %v", err)
				}
			}

			cfg, err := Load(globalPath, projectPath)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := len(cfg.Servers); got != tt.expectServers {
				t.Errorf("servers count = %d, want %d", got, tt.expectServers)
			}
			if cfg.ActiveServer != tt.expectActive {
				t.Errorf("active server = %q, want %q", cfg.ActiveServer, tt.expectActive)
			}
			server, err := cfg.Server()
			if err != nil {
				t.Fatalf("Server(): %v", err)
			}
			if server.BaseURL != tt.expectBaseURL {
				t.Errorf("base url = %q, want %q", server.BaseURL, tt.expectBaseURL)
			}
			if cfg.Logs != tt.expectLogs {
				t.Errorf("logs = %+v, want %+v", cfg.Logs, tt.expectLogs)
			}
			if cfg.Run.OutputFormat != tt.expectFormat {
				t.Errorf("output format = %q, want %q", cfg.Run.OutputFormat, tt.expectFormat)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("loaded config should validate: %v", err)
			}
		})
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()

	globalPath := filepath.Join(tmpDir, "global.json")
	if err := os.WriteFile(globalPath, []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("writing malformed config: %v", err)
	}

	_, err := Load(globalPath, "")
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
	if !strings.Contains(err.Error(), "global.json") {
		t.Errorf("error should mention the file: %v", err)
	}
}

func TestLoad_MissingFilesNotError(t *testing.T) {
	cfg, err := Load("/nonexistent/global.json", "/nonexistent/project.json")
	if err != nil {
		t.Fatalf("expected no error for missing files, got: %v", err)
	}
	if len(cfg.Servers) != 1 {
		t.Errorf("servers count = %d, want 1", len(cfg.Servers))
	}
	if cfg.Layout.AggregationGroup != "analysis" {
		t.Errorf("aggregation group = %q, want analysis", cfg.Layout.AggregationGroup)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConsoleConfig)
		wantErr string
	}{
		{"defaults", func(*ConsoleConfig) {}, ""},
		{"unknown active server", func(c *ConsoleConfig) { c.ActiveServer = "prod" }, `active server "prod"`},
		{"bad scheme", func(c *ConsoleConfig) { c.Servers["local"] = ServerConfig{BaseURL: "ftp://x"} }, "scheme"},
		{"missing url", func(c *ConsoleConfig) { c.Servers["local"] = ServerConfig{} }, "base_url is required"},
		{"zero capacity", func(c *ConsoleConfig) { c.Logs.Capacity = 0 }, "logs.capacity"},
		{"zero attempts", func(c *ConsoleConfig) { c.Logs.MaxAttempts = 0 }, "logs.max_attempts"},
		{"negative columns", func(c *ConsoleConfig) { c.Layout.MaxColumns = -1 }, "max_columns"},
		{"bad format", func(c *ConsoleConfig) { c.Run.OutputFormat = "xml" }, "output_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logs.Capacity = -1
	cfg.Logs.BacklogLimit = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"logs.capacity", "logs.backlog_limit"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestHistoryPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Run.HistoryPath = "/tmp/h.db"
	if p, err := cfg.HistoryPath(); err != nil || p != "/tmp/h.db" {
		t.Errorf("explicit path = %q, %v", p, err)
	}

	t.Setenv("HOME", t.TempDir())
	cfg.Run.HistoryPath = ""
	p, err := cfg.HistoryPath()
	if err != nil {
		t.Fatalf("default path: %v", err)
	}
	if filepath.Base(p) != "history.db" || filepath.Base(filepath.Dir(p)) != ".runconsole" {
		t.Errorf("default path = %q", p)
	}
}
