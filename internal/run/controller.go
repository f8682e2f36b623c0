package run

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aristath/runconsole/internal/events"
	"github.com/aristath/runconsole/internal/model"
)

// Conn is one open task channel.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// DialFunc opens a new task channel.
type DialFunc func(ctx context.Context) (Conn, error)

// Publisher receives a snapshot after every state change.
type Publisher interface {
	Publish(topic string, event events.Event)
}

// Recorder persists a run once it reaches the done state.
type Recorder interface {
	SaveRun(ctx context.Context, state RunState) error
}

// UpdatedEvent carries a RunState snapshot on the event bus.
type UpdatedEvent struct {
	State     RunState
	Timestamp time.Time
}

func (e UpdatedEvent) EventType() string { return events.EventTypeRunUpdated }
func (e UpdatedEvent) TaskID() string    { return e.State.TaskID }

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Dial      DialFunc   // Required
	Publisher Publisher  // Optional
	Recorder  Recorder   // Optional
	Logger    *slog.Logger
}

// Controller owns at most one active run and its channel. Messages from a
// channel are applied strictly in arrival order by that channel's reader;
// readers of discarded channels never touch the state again.
type Controller struct {
	cfg    ControllerConfig
	log    *slog.Logger
	mu     sync.Mutex
	gen    uint64 // Bumped by every Submit and by Close
	conn   Conn
	state  RunState
	closed bool
	wg     sync.WaitGroup
}

// NewController creates a Controller in the idle state.
func NewController(cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:   cfg,
		log:   logger.With("component", "run"),
		state: RunState{Conn: StateIdle},
	}
}

// State returns a snapshot of the current run.
func (c *Controller) State() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Submit starts a new run, discarding any previous run's channel and state.
// Closing the old channel is best-effort and not awaited. A dial or send
// failure moves the run to the error state and is returned as *TransportError.
func (c *Controller) Submit(ctx context.Context, command string, format model.OutputFormat) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return ErrEmptyCommand
	}
	if format == "" {
		format = model.FormatJSON
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	c.gen++
	gen := c.gen
	old := c.conn
	c.conn = nil
	c.state = RunState{Conn: StateConnecting, Command: command, Format: format}
	snapshot := c.state.Clone()
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	c.publish(snapshot)
	c.log.Info("submitting command", "format", format)

	conn, err := c.cfg.Dial(ctx)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrSuperseded
	}
	if err != nil {
		terr := &TransportError{Op: "dial", Err: err}
		c.state.Conn = StateError
		c.state.Error = terr.Error()
		snapshot = c.state.Clone()
		c.mu.Unlock()
		c.log.Warn("task channel failed to open", "err", err)
		c.publish(snapshot)
		return terr
	}
	c.conn = conn
	c.state.Conn = StateRunning
	snapshot = c.state.Clone()
	c.mu.Unlock()
	c.publish(snapshot)

	if err := conn.WriteJSON(model.CommandMessage{Command: command, OutputFormat: format}); err != nil {
		terr := &TransportError{Op: "send", Err: err}
		c.fail(gen, terr)
		_ = conn.Close()
		return terr
	}

	c.wg.Add(1)
	go c.read(gen, conn)
	return nil
}

// read applies every message from conn until it closes or is superseded.
func (c *Controller) read(gen uint64, conn Conn) {
	defer c.wg.Done()

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			c.channelClosed(gen, conn, err)
			return
		}

		in, err := model.DecodeInbound(raw)
		if err != nil {
			c.log.Debug("dropping undecodable message", "err", err)
			continue
		}

		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		wasDone := c.state.Conn == StateDone
		c.state = Apply(c.state, in)
		snapshot := c.state.Clone()
		c.mu.Unlock()

		c.publish(snapshot)
		if !wasDone && snapshot.Conn == StateDone {
			c.log.Info("run finished", "task_id", snapshot.TaskID, "status", resultStatus(snapshot), "duration_ms", snapshot.DurationMS)
			c.record(snapshot)
		}
	}
}

// channelClosed handles the end of a channel. Closure after the terminal
// result is expected; anything earlier is a transport failure.
func (c *Controller) channelClosed(gen uint64, conn Conn, err error) {
	_ = conn.Close()

	c.mu.Lock()
	if gen == c.gen && c.conn == conn {
		c.conn = nil
	}
	if gen != c.gen || c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.log.Warn("task channel closed before result", "err", err)
	c.fail(gen, &TransportError{Op: "read", Err: err})
}

func (c *Controller) fail(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state.Conn = StateError
	c.state.Error = err.Error()
	c.conn = nil
	snapshot := c.state.Clone()
	c.mu.Unlock()
	c.publish(snapshot)
}

func (c *Controller) record(state RunState) {
	if c.cfg.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.cfg.Recorder.SaveRun(ctx, state); err != nil {
		c.log.Error("failed to record run", "task_id", state.TaskID, "err", err)
	}
}

func (c *Controller) publish(state RunState) {
	if c.cfg.Publisher == nil {
		return
	}
	c.cfg.Publisher.Publish(events.TopicRun, UpdatedEvent{State: state, Timestamp: time.Now()})
}

// Close discards the active run's channel and rejects further submissions.
// It waits for channel readers to exit.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.gen++
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		if cerr := conn.Close(); cerr != nil {
			err = fmt.Errorf("closing task channel: %w", cerr)
		}
	}
	c.wg.Wait()
	return err
}

func resultStatus(s RunState) string {
	if s.Result == nil {
		return ""
	}
	return s.Result.Status
}
