package config

import (
	"fmt"
	"time"

	"github.com/aristath/runconsole/internal/layout"
)

// ServerConfig defines one console server the client can attach to.
type ServerConfig struct {
	BaseURL       string `json:"base_url"`                  // http(s) URL of the server
	TaskPath      string `json:"task_path,omitempty"`       // Task channel, default /api/ws
	LogsPath      string `json:"logs_path,omitempty"`       // Log channel, default /api/ws/logs
	BacklogPath   string `json:"backlog_path,omitempty"`    // Log backlog, default /api/logs
	HealthPath    string `json:"health_path,omitempty"`     // Health probe, default /api/health
	Token         string `json:"token,omitempty"`           // Optional bearer token
	DialTimeoutMS int    `json:"dial_timeout_ms,omitempty"` // Channel open timeout
}

// DialTimeout returns the channel open timeout, 10s when unset.
func (s ServerConfig) DialTimeout() time.Duration {
	if s.DialTimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.DialTimeoutMS) * time.Millisecond
}

// LogsConfig tunes the live log view.
type LogsConfig struct {
	Capacity        int `json:"capacity"`          // Ring buffer size
	BacklogLimit    int `json:"backlog_limit"`     // Entries fetched on activation
	ReconnectBaseMS int `json:"reconnect_base_ms"` // Delay unit; attempt n waits n units
	MaxAttempts     int `json:"max_attempts"`      // Reconnects before giving up
}

// ReconnectBase returns the reconnect delay unit.
func (l LogsConfig) ReconnectBase() time.Duration {
	return time.Duration(l.ReconnectBaseMS) * time.Millisecond
}

// LayoutConfig controls DAG diagram geometry.
type LayoutConfig struct {
	ColumnSpacing    float64 `json:"column_spacing"`
	RowSpacing       float64 `json:"row_spacing"`
	AggregationGroup string  `json:"aggregation_group"`
	MaxColumns       int     `json:"max_columns,omitempty"` // 0 means unlimited
}

// Options converts the section into layout options.
func (l LayoutConfig) Options() layout.Options {
	return layout.Options{
		ColumnSpacing:    l.ColumnSpacing,
		RowSpacing:       l.RowSpacing,
		AggregationGroup: l.AggregationGroup,
		MaxColumns:       l.MaxColumns,
	}
}

// RunConfig holds task submission and history settings.
type RunConfig struct {
	OutputFormat    string `json:"output_format"`           // json, csv or summary
	HistoryPath     string `json:"history_path,omitempty"`  // SQLite file; empty uses the default
	HistoryDisabled bool   `json:"history_disabled,omitempty"`
}

// ConsoleConfig is the top-level configuration.
type ConsoleConfig struct {
	ActiveServer string                  `json:"active_server"`
	Servers      map[string]ServerConfig `json:"servers"`
	Logs         LogsConfig              `json:"logs"`
	Layout       LayoutConfig            `json:"layout"`
	Run          RunConfig               `json:"run"`
}

// Server returns the active server profile.
func (c *ConsoleConfig) Server() (ServerConfig, error) {
	s, ok := c.Servers[c.ActiveServer]
	if !ok {
		return ServerConfig{}, fmt.Errorf("active server %q is not defined", c.ActiveServer)
	}
	return s, nil
}
