package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.Servers["staging"] = ServerConfig{BaseURL: "https://staging.example.com"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var loaded ConsoleConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Config file contains invalid JSON: %v", err)
	}
	if loaded.Servers["staging"].BaseURL != "https://staging.example.com" {
		t.Errorf("Expected staging server to be saved, got %+v", loaded.Servers)
	}
}

func TestSaveCreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "deep", "config.json")

	if err := Save(DefaultConfig(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	original := DefaultConfig()
	original.ActiveServer = "staging"
	original.Servers["staging"] = ServerConfig{BaseURL: "https://staging.example.com", DialTimeoutMS: 2500}
	original.Logs.Capacity = 120
	original.Layout.MaxColumns = 4
	original.Run.OutputFormat = "summary"
	original.Run.HistoryDisabled = true

	if err := Save(original, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load("", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.ActiveServer != "staging" {
		t.Errorf("active server = %q", loaded.ActiveServer)
	}
	server, err := loaded.Server()
	if err != nil {
		t.Fatalf("Server(): %v", err)
	}
	if server.DialTimeout().Milliseconds() != 2500 {
		t.Errorf("dial timeout = %v", server.DialTimeout())
	}
	if loaded.Logs != original.Logs || loaded.Layout != original.Layout || loaded.Run != original.Run {
		t.Errorf("sections differ:\n got  %+v %+v %+v\n want %+v %+v %+v",
			loaded.Logs, loaded.Layout, loaded.Run, original.Logs, original.Layout, original.Run)
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	first := DefaultConfig()
	first.Logs.Capacity = 10
	if err := Save(first, path); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	second := DefaultConfig()
	second.Logs.Capacity = 20
	if err := Save(second, path); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := Load("", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Logs.Capacity != 20 {
		t.Errorf("capacity = %d, want 20", loaded.Logs.Capacity)
	}
}

func TestSaveRestrictsPermissionsWithToken(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.Servers["local"] = ServerConfig{BaseURL: "http://localhost:8000", Token: "secret"}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}
