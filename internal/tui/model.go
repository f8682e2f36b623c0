package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/runconsole/internal/config"
	"github.com/aristath/runconsole/internal/events"
	"github.com/aristath/runconsole/internal/logstream"
	"github.com/aristath/runconsole/internal/model"
	"github.com/aristath/runconsole/internal/run"
	"github.com/aristath/runconsole/internal/timeline"
	"github.com/aristath/runconsole/internal/transport"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneSteps PaneID = iota
	PaneDAG
	PaneTimeline
	PaneLogs
	paneCount
)

// Submitter starts runs.
type Submitter interface {
	Submit(ctx context.Context, command string, format model.OutputFormat) error
}

// LogStream is the live log feed shown in the log pane.
type LogStream interface {
	LogSource
	Start(ctx context.Context) error
}

// Options wires the model to the live-state components.
type Options struct {
	Context     context.Context // Parent of submitted runs; defaults to Background
	Bus         *events.EventBus
	Runs        Submitter
	Logs        LogStream
	Config      *config.ConsoleConfig
	GlobalPath  string
	ProjectPath string
}

// submitResultMsg reports the outcome of a Submit call.
type submitResultMsg struct {
	err error
}

// logRestartMsg reports the outcome of restarting the log stream.
type logRestartMsg struct {
	err error
}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	ctx          context.Context
	runs         Submitter
	logs         LogStream
	input        textinput.Model
	inputActive  bool
	format       model.OutputFormat
	stepsPane    StepsPaneModel
	dagPane      DAGPaneModel
	timelinePane TimelinePaneModel
	logPane      LogPaneModel
	settingsPane SettingsPaneModel
	focusedPane  PaneID
	eventSub     <-chan events.Event
	state        run.RunState
	health       *transport.HealthEvent
	notice       string
	width        int
	height       int
	quitting     bool
	showSettings bool
	config       *config.ConsoleConfig
}

// New creates a new TUI model.
// It subscribes to all events from the event bus using SubscribeAll.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	format, err := model.ParseOutputFormat(cfg.Run.OutputFormat)
	if err != nil {
		format = model.FormatJSON
	}

	input := textinput.New()
	input.Prompt = "› "
	input.Placeholder = "Describe a task, e.g. compare the price of AirPods on amazon and walmart"
	input.CharLimit = 2000
	input.Focus()

	var source LogSource
	if opts.Logs != nil {
		source = opts.Logs
	}

	return Model{
		ctx:          ctx,
		runs:         opts.Runs,
		logs:         opts.Logs,
		input:        input,
		inputActive:  true,
		format:       format,
		stepsPane:    NewStepsPaneModel(),
		dagPane:      NewDAGPaneModel(cfg.Layout.Options()),
		timelinePane: NewTimelinePaneModel(timeline.DefaultOptions()),
		logPane:      NewLogPaneModel(source),
		settingsPane: NewSettingsPaneModel(cfg, opts.GlobalPath, opts.ProjectPath),
		focusedPane:  PaneSteps,
		eventSub:     opts.Bus.SubscribeAll(256),
		state:        run.RunState{Conn: run.StateIdle},
		config:       cfg,
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.eventSub))
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

func (m Model) submit() tea.Cmd {
	command := strings.TrimSpace(m.input.Value())
	if command == "" || m.runs == nil {
		return nil
	}
	runs, ctx, format := m.runs, m.ctx, m.format
	return func() tea.Msg {
		return submitResultMsg{err: runs.Submit(ctx, command, format)}
	}
}

func (m Model) restartLogs() tea.Cmd {
	if m.logs == nil {
		return nil
	}
	logs, ctx := m.logs, m.ctx
	return func() tea.Msg {
		return logRestartMsg{err: logs.Start(ctx)}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}

		// If settings panel is open, route all keys to it (modal behavior)
		if m.showSettings {
			var cmd tea.Cmd
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			cmds = append(cmds, cmd)

			// Check if settings pane closed itself (after save or esc)
			if !m.settingsPane.IsVisible() {
				m.showSettings = false
				if m.settingsPane.Saved() {
					m.applyConfig()
				}
			}
			return m, tea.Batch(cmds...)
		}

		if m.inputActive {
			switch msg.String() {
			case KeyEnter:
				if cmd := m.submit(); cmd != nil {
					m.notice = ""
					m.input.Reset()
					cmds = append(cmds, cmd)
				}
			case KeyEsc:
				m.inputActive = false
				m.input.Blur()
			default:
				var cmd tea.Cmd
				m.input, cmd = m.input.Update(msg)
				cmds = append(cmds, cmd)
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit:
			m.quitting = true
			return m, tea.Quit

		case KeyCommand, "i":
			m.inputActive = true
			cmds = append(cmds, m.input.Focus())

		case KeySettings:
			m.showSettings = true
			m.settingsPane.SetVisible(true)
			cmds = append(cmds, m.settingsPane.Init())

		case KeyFormat:
			m.format = nextFormat(m.format)

		case KeyReconnect:
			cmds = append(cmds, m.restartLogs())

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneSteps
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneDAG
			m.updateFocusStates()

		case KeyPane3:
			m.focusedPane = PaneTimeline
			m.updateFocusStates()

		case KeyPane4:
			m.focusedPane = PaneLogs
			m.updateFocusStates()

		default:
			// Delegate to focused pane
			var cmd tea.Cmd
			switch m.focusedPane {
			case PaneSteps:
				m.stepsPane, cmd = m.stepsPane.Update(msg)
			case PaneLogs:
				m.logPane, cmd = m.logPane.Update(msg)
			}
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)

	case submitResultMsg:
		switch {
		case msg.err == nil, errors.Is(msg.err, run.ErrSuperseded):
		case errors.Is(msg.err, run.ErrEmptyCommand):
			m.notice = "enter a command first"
		default:
			m.notice = msg.err.Error()
		}

	case logRestartMsg:
		if msg.err != nil && !errors.Is(msg.err, logstream.ErrRunning) {
			m.notice = "log stream: " + msg.err.Error()
		}

	case run.UpdatedEvent:
		m.state = msg.State
		var cmd tea.Cmd
		m.stepsPane, cmd = m.stepsPane.Update(msg)
		cmds = append(cmds, cmd)
		m.dagPane, _ = m.dagPane.Update(msg)
		m.timelinePane, _ = m.timelinePane.Update(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case logstream.AppendedEvent, logstream.StatusEvent:
		var cmd tea.Cmd
		m.logPane, cmd = m.logPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case transport.HealthEvent:
		m.health = &msg
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.Event:
		// Not displayed, but consume and wait for next event
		cmds = append(cmds, waitForEvent(m.eventSub))

	case tickMsg:
		var cmd tea.Cmd
		m.stepsPane, cmd = m.stepsPane.Update(msg)
		cmds = append(cmds, cmd)

	case logTickMsg:
		var cmd tea.Cmd
		m.logPane, cmd = m.logPane.Update(msg)
		cmds = append(cmds, cmd)

	default:
		if m.showSettings {
			var cmd tea.Cmd
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			cmds = append(cmds, cmd)
		} else if m.inputActive {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// applyConfig pushes saved settings that can change without a restart.
func (m *Model) applyConfig() {
	if f, err := model.ParseOutputFormat(m.config.Run.OutputFormat); err == nil {
		m.format = f
	}
	m.dagPane.SetOptions(m.config.Layout.Options())
	m.notice = "settings saved"
}

func nextFormat(f model.OutputFormat) model.OutputFormat {
	switch f {
	case model.FormatJSON:
		return model.FormatCSV
	case model.FormatCSV:
		return model.FormatSummary
	default:
		return model.FormatJSON
	}
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showSettings {
		return m.settingsPane.View()
	}

	right := lipgloss.JoinVertical(lipgloss.Left, m.dagPane.View(), m.timelinePane.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.stepsPane.View(), right)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.input.View(),
		body,
		m.logPane.View(),
		HelpView(),
	)
}

// headerView renders the run status line.
func (m Model) headerView() string {
	parts := []string{
		StyleTitle.Render("runconsole"),
		runBadge(m.state),
		StyleHelp.Render("format " + string(m.format)),
	}
	if m.state.Phase != "" && m.state.Conn == run.StateRunning {
		parts = append(parts, StyleReasoning.Render(m.state.Phase))
	}
	if m.state.TaskID != "" {
		parts = append(parts, StyleHelp.Render(m.state.TaskID))
	}
	if m.state.Conn == run.StateDone {
		parts = append(parts, fmt.Sprintf("%s  $%.4f", formatMS(m.state.DurationMS), m.state.CostUSD))
	}
	parts = append(parts, healthBadge(m.health))
	if m.notice != "" {
		parts = append(parts, StyleError.Render(m.notice))
	}
	return truncateLine(strings.Join(parts, " "), m.width)
}

func runBadge(s run.RunState) string {
	switch s.Conn {
	case run.StateRunning:
		return StyleBadgeWarn.Render("running")
	case run.StateDone:
		if s.Result != nil && s.Result.Status != "" && s.Result.Status != "completed" {
			return StyleBadgeDown.Render(s.Result.Status)
		}
		return StyleBadgeLive.Render("done")
	case run.StateError:
		return StyleBadgeDown.Render("error")
	case run.StateConnecting:
		return StyleBadgeWarn.Render("connecting")
	default:
		return StyleHelp.Render("idle")
	}
}

func healthBadge(h *transport.HealthEvent) string {
	switch {
	case h == nil:
		return StyleHelp.Render("server ?")
	case h.Err != nil:
		return StyleBadgeDown.Render("server unreachable")
	case !h.Health.OK():
		return StyleBadgeWarn.Render("server " + h.Health.Status)
	default:
		label := "server ok"
		if h.Health.Mode != "" {
			label += " · " + h.Health.Mode
		}
		return StyleBadgeLive.Render(label)
	}
}

func truncateLine(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	availableHeight := max(m.height-3, 8) // header, input and help bar
	mainHeight := (availableHeight * 65) / 100
	logsHeight := availableHeight - mainHeight

	leftWidth := (m.width * 40) / 100
	rightWidth := m.width - leftWidth
	dagHeight := (mainHeight * 55) / 100
	timelineHeight := mainHeight - dagHeight

	m.input.Width = max(m.width-4, 10)
	m.stepsPane.SetSize(leftWidth, mainHeight)
	m.dagPane.SetSize(rightWidth, dagHeight)
	m.timelinePane.SetSize(rightWidth, timelineHeight)
	m.logPane.SetSize(m.width, logsHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.stepsPane.SetFocused(m.focusedPane == PaneSteps)
	m.dagPane.SetFocused(m.focusedPane == PaneDAG)
	m.timelinePane.SetFocused(m.focusedPane == PaneTimeline)
	m.logPane.SetFocused(m.focusedPane == PaneLogs)
}
