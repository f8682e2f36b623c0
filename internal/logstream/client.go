package logstream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aristath/runconsole/internal/events"
	"github.com/aristath/runconsole/internal/model"
)

// Status is the connection state of the log stream.
type Status int

const (
	StatusIdle         Status = iota // Not started
	StatusConnecting                 // Fetching backlog or opening the first channel
	StatusLive                       // Channel open
	StatusReconnecting               // Waiting to reopen after a closure
	StatusDisconnected               // Reconnect ceiling reached; Start again to resume
	StatusClosed                     // Disposed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusLive:
		return "live"
	case StatusReconnecting:
		return "reconnecting"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "closed"
	}
}

// Default reconnect policy.
const (
	DefaultReconnectBase = time.Second
	DefaultMaxAttempts   = 5
)

var (
	// ErrRunning is returned by Start while the client is already streaming.
	ErrRunning = errors.New("log stream already running")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("log stream closed")
)

// Stream is one open log channel.
type Stream interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// DialFunc opens a log channel.
type DialFunc func(ctx context.Context) (Stream, error)

// BacklogFunc fetches the most recent limit entries, oldest first.
type BacklogFunc func(ctx context.Context, limit int) ([]model.LogEntry, error)

// Publisher receives log updates.
type Publisher interface {
	Publish(topic string, event events.Event)
}

// AppendedEvent announces an entry accepted into the ring.
type AppendedEvent struct {
	Entry model.LogEntry
}

func (e AppendedEvent) EventType() string { return events.EventTypeLogAppended }
func (e AppendedEvent) TaskID() string    { return "" }

// StatusEvent announces a connection state change.
type StatusEvent struct {
	Status  Status
	Attempt int // Reconnect attempt number while reconnecting
}

func (e StatusEvent) EventType() string { return events.EventTypeLogStatus }
func (e StatusEvent) TaskID() string    { return "" }

// Config configures a Client.
type Config struct {
	Dial          DialFunc    // Required
	Backlog       BacklogFunc // Optional backlog seed
	Capacity      int
	BacklogLimit  int
	ReconnectBase time.Duration
	MaxAttempts   int
	Publisher     Publisher
	Logger        *slog.Logger

	// Sleep waits between reconnects; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client keeps a bounded, continuously updated view of server logs.
type Client struct {
	cfg  Config
	ring *Ring
	log  *slog.Logger

	// alive is cleared exactly once by Close. Every asynchronous step checks
	// it before touching shared state.
	alive     atomic.Bool
	closeOnce sync.Once

	mu      sync.Mutex
	status  Status
	stream  Stream
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewClient creates an idle client. Zero config values take defaults.
func NewClient(cfg Config) *Client {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = DefaultReconnectBase
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:  cfg,
		ring: NewRing(cfg.Capacity),
		log:  logger.With("component", "logstream"),
	}
	c.alive.Store(true)
	return c
}

// Start seeds the ring from the backlog and opens the live channel in the
// background. After the reconnect ceiling is reached Start may be called
// again; a successful backlog fetch then replaces the buffered entries.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if !c.alive.Load() {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.running {
		c.mu.Unlock()
		return ErrRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer cancel()

		disconnected := c.run(runCtx)

		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		if disconnected {
			c.setStatus(StatusDisconnected, c.cfg.MaxAttempts)
		}
	}()
	return nil
}

// Entries returns the buffered entries, oldest first.
func (c *Client) Entries() []model.LogEntry { return c.ring.Entries() }

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Close closes the channel and suppresses any pending reconnect. It blocks
// until the background loop exits and is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.alive.Store(false)
		if c.cancel != nil {
			c.cancel()
		}
		stream := c.stream
		c.stream = nil
		c.mu.Unlock()

		if stream != nil {
			_ = stream.Close()
		}
		c.wg.Wait()
		c.setStatus(StatusClosed, 0)
	})
	return nil
}

// run streams until the client closes or the reconnect ceiling is reached,
// reporting whether the ceiling was the reason.
func (c *Client) run(ctx context.Context) bool {
	c.setStatus(StatusConnecting, 0)
	c.seed(ctx)

	policy := newReconnectPolicy(c.cfg.ReconnectBase, c.cfg.MaxAttempts)
	attempt := 0
	for {
		if !c.alive.Load() {
			return false
		}

		stream, err := c.cfg.Dial(ctx)
		if err != nil {
			c.log.Debug("log channel dial failed", "attempt", attempt, "error", err)
		} else if c.attach(stream) {
			policy.Reset()
			attempt = 0
			c.setStatus(StatusLive, 0)
			c.consume(stream)
			c.detach(stream)
		} else {
			// Closed while dialing.
			_ = stream.Close()
			return false
		}

		if !c.alive.Load() {
			return false
		}

		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			c.log.Warn("log channel reconnect ceiling reached", "attempts", attempt)
			return true
		}
		attempt++
		c.setStatus(StatusReconnecting, attempt)

		if err := c.cfg.Sleep(ctx, delay); err != nil {
			return false
		}
	}
}

// seed fills the ring from the backlog. Failure leaves the ring as is.
func (c *Client) seed(ctx context.Context) {
	if c.cfg.Backlog == nil {
		return
	}
	entries, err := c.cfg.Backlog(ctx, c.cfg.BacklogLimit)
	if err != nil {
		c.log.Warn("log backlog fetch failed", "error", err)
		return
	}
	if !c.alive.Load() {
		return
	}
	c.ring.Reset()
	c.ring.Append(entries...)
	for _, e := range entries {
		c.publish(AppendedEvent{Entry: e})
	}
}

func (c *Client) consume(stream Stream) {
	for {
		raw, err := stream.ReadMessage()
		if err != nil {
			if c.alive.Load() {
				c.log.Debug("log channel closed", "error", err)
			}
			return
		}
		entry, err := model.DecodeLogEntry(raw)
		if err != nil {
			continue
		}
		if !c.alive.Load() {
			return
		}
		c.ring.Append(entry)
		c.publish(AppendedEvent{Entry: entry})
	}
}

// attach records stream as current unless the client was closed meanwhile.
func (c *Client) attach(stream Stream) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive.Load() {
		return false
	}
	c.stream = stream
	return true
}

func (c *Client) detach(stream Stream) {
	c.mu.Lock()
	if c.stream == stream {
		c.stream = nil
	}
	c.mu.Unlock()
	_ = stream.Close()
}

func (c *Client) setStatus(s Status, attempt int) {
	c.mu.Lock()
	if c.status == StatusClosed || (s != StatusClosed && !c.alive.Load()) {
		c.mu.Unlock()
		return
	}
	c.status = s
	c.mu.Unlock()
	c.publish(StatusEvent{Status: s, Attempt: attempt})
}

func (c *Client) publish(e events.Event) {
	if c.cfg.Publisher != nil {
		c.cfg.Publisher.Publish(events.TopicLogs, e)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
