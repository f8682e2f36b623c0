package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aristath/runconsole/internal/model"
)

// Validate checks the configuration for values the console cannot run with.
// All problems are reported together.
func (c *ConsoleConfig) Validate() error {
	var errs []error

	if server, err := c.Server(); err != nil {
		errs = append(errs, err)
	} else if err := validateBaseURL(server.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("server %q: %w", c.ActiveServer, err))
	}

	if c.Logs.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("logs.capacity must be positive, got %d", c.Logs.Capacity))
	}
	if c.Logs.BacklogLimit <= 0 {
		errs = append(errs, fmt.Errorf("logs.backlog_limit must be positive, got %d", c.Logs.BacklogLimit))
	}
	if c.Logs.ReconnectBaseMS <= 0 {
		errs = append(errs, fmt.Errorf("logs.reconnect_base_ms must be positive, got %d", c.Logs.ReconnectBaseMS))
	}
	if c.Logs.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("logs.max_attempts must be positive, got %d", c.Logs.MaxAttempts))
	}

	if c.Layout.ColumnSpacing <= 0 || c.Layout.RowSpacing <= 0 {
		errs = append(errs, errors.New("layout spacings must be positive"))
	}
	if c.Layout.MaxColumns < 0 {
		errs = append(errs, fmt.Errorf("layout.max_columns must not be negative, got %d", c.Layout.MaxColumns))
	}

	if _, err := model.ParseOutputFormat(c.Run.OutputFormat); err != nil {
		errs = append(errs, fmt.Errorf("run.output_format: %w", err))
	}

	return errors.Join(errs...)
}

func validateBaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("base_url has no host")
	}
	return nil
}
