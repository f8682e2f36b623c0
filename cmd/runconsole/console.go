package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/runconsole/internal/config"
	"github.com/aristath/runconsole/internal/events"
	"github.com/aristath/runconsole/internal/logstream"
	"github.com/aristath/runconsole/internal/persistence"
	"github.com/aristath/runconsole/internal/run"
	"github.com/aristath/runconsole/internal/transport"
	"github.com/aristath/runconsole/internal/tui"
)

const shutdownTimeout = 10 * time.Second

// console is the wired set of live-state components behind the TUI.
type console struct {
	bus        *events.EventBus
	client     *transport.Client
	controller *run.Controller
	logs       *logstream.Client
	store      *persistence.SQLiteStore
}

// newConsole builds every component for the active server profile.
func newConsole(ctx context.Context, cfg *config.ConsoleConfig) (*console, error) {
	server, err := cfg.Server()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("server", cfg.ActiveServer)

	client, err := transport.NewClient(transport.ClientConfig{
		BaseURL:     server.BaseURL,
		BacklogPath: server.BacklogPath,
		HealthPath:  server.HealthPath,
		Token:       server.Token,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	dialer := transport.Dialer{
		BaseURL:     server.BaseURL,
		TaskPath:    server.TaskPath,
		LogsPath:    server.LogsPath,
		Token:       server.Token,
		DialTimeout: server.DialTimeout(),
	}

	c := &console{bus: events.NewEventBus(), client: client}

	var recorder run.Recorder
	if !cfg.Run.HistoryDisabled {
		path, err := cfg.HistoryPath()
		if err != nil {
			return nil, err
		}
		store, err := persistence.NewSQLiteStore(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("opening run history: %w", err)
		}
		c.store = store
		recorder = store
	}

	c.controller = run.NewController(run.ControllerConfig{
		Dial:      taskDialer(dialer),
		Publisher: c.bus,
		Recorder:  recorder,
		Logger:    logger,
	})
	c.logs = logstream.NewClient(logstream.Config{
		Dial:          logDialer(dialer),
		Backlog:       client.Backlog,
		Capacity:      cfg.Logs.Capacity,
		BacklogLimit:  cfg.Logs.BacklogLimit,
		ReconnectBase: cfg.Logs.ReconnectBase(),
		MaxAttempts:   cfg.Logs.MaxAttempts,
		Publisher:     c.bus,
		Logger:        logger,
	})
	return c, nil
}

// taskDialer adapts the websocket dialer to the run controller.
func taskDialer(d transport.Dialer) run.DialFunc {
	return func(ctx context.Context) (run.Conn, error) {
		conn, err := d.DialTask(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// logDialer adapts the websocket dialer to the log stream client.
func logDialer(d transport.Dialer) logstream.DialFunc {
	return func(ctx context.Context) (logstream.Stream, error) {
		conn, err := d.DialLogs(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Close disposes components in dependency order.
func (c *console) Close() error {
	var errs []error
	if err := c.controller.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.logs.Close(); err != nil {
		errs = append(errs, err)
	}
	c.bus.Close()
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runConsole runs the TUI until the user quits or ctx is cancelled.
func runConsole(ctx context.Context, cfg *config.ConsoleConfig, paths configPaths) error {
	c, err := newConsole(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			slog.Warn("shutdown", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.New(tui.Options{
		Context:     ctx,
		Bus:         c.bus,
		Runs:        c.controller,
		Logs:        c.logs,
		Config:      cfg,
		GlobalPath:  paths.global,
		ProjectPath: paths.project,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Normal TUI exit (user pressed 'q') stops the background work.
		defer cancel()
		_, err := p.Run()
		return err
	})
	g.Go(func() error {
		if err := c.logs.Start(gctx); err != nil {
			return fmt.Errorf("starting log stream: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return transport.PollHealth(gctx, c.client, transport.DefaultHealthInterval, c.bus)
	})
	g.Go(func() error {
		<-gctx.Done()
		// Signal received or TUI finished; quitting an exited program is a no-op.
		p.Quit()
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	select {
	case err := <-done:
		return err
	case <-time.After(shutdownTimeout):
		slog.Warn("shutdown timeout exceeded, forcing exit")
		return nil
	}
}
