package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aristath/runconsole/internal/model"
)

// DefaultBacklogLimit is the number of entries requested when none is given.
const DefaultBacklogLimit = 200

// Health is the server's self-reported status and mode.
type Health struct {
	Status            string `json:"status"`
	AWSConfigured     bool   `json:"aws_configured"`
	NovaActConfigured bool   `json:"nova_act_configured"`
	Mode              string `json:"mode"`
}

// OK reports whether the server considers itself healthy.
func (h Health) OK() bool { return h.Status == "ok" }

// StatusError is a non-2xx response.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Path, e.Code)
}

// RetryConfig configures exponential backoff for request/response calls.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig returns the default request retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL     string
	BacklogPath string
	HealthPath  string
	Token       string // Optional bearer token
	HTTPClient  *http.Client
	Breakers    *BreakerRegistry
	Retry       RetryConfig
	Logger      *slog.Logger
}

// Client calls the console server's request/response endpoints.
type Client struct {
	base     *url.URL
	cfg      ClientConfig
	http     *http.Client
	breakers *BreakerRegistry
	logger   *slog.Logger
}

// NewClient validates the base URL and returns a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}

	c := &Client{base: u, cfg: cfg, http: cfg.HTTPClient, breakers: cfg.Breakers, logger: cfg.Logger}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.breakers == nil {
		c.breakers = NewBreakerRegistry(c.logger)
	}
	if c.cfg.Retry == (RetryConfig{}) {
		c.cfg.Retry = DefaultRetryConfig()
	}
	return c, nil
}

// Backlog fetches the most recent log entries, oldest first. Entries that do
// not decode are dropped.
func (c *Client) Backlog(ctx context.Context, limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		limit = DefaultBacklogLimit
	}
	path := orDefault(c.cfg.BacklogPath, DefaultBacklogPath)
	query := url.Values{"limit": {strconv.Itoa(limit)}}

	var raw []json.RawMessage
	if err := c.getJSON(ctx, path, query, &raw); err != nil {
		return nil, err
	}

	entries := make([]model.LogEntry, 0, len(raw))
	for _, r := range raw {
		e, err := model.DecodeLogEntry(r)
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Health fetches the server health badge.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.getJSON(ctx, orDefault(c.cfg.HealthPath, DefaultHealthPath), nil, &h)
	return h, err
}

// getJSON performs a GET through the endpoint's breaker, retrying transient
// failures with exponential backoff.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	cb := c.breakers.Get(path)
	target := *c.base
	target.Path = strings.TrimRight(target.Path, "/") + path
	target.RawQuery = query.Encode()

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		_, err := cb.Execute(func() (interface{}, error) {
			return nil, c.fetch(ctx, target.String(), out)
		})
		if err == nil {
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		var se *StatusError
		if errors.As(err, &se) && se.Code < 500 {
			return backoff.Permanent(err)
		}
		c.logger.Debug("request failed, retrying", "path", path, "error", err)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.Retry.InitialInterval
	policy.MaxInterval = c.cfg.Retry.MaxInterval
	policy.MaxElapsedTime = c.cfg.Retry.MaxElapsedTime

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

func (c *Client) fetch(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Path: req.URL.Path, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}
