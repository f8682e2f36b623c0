package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/runconsole/internal/logstream"
	"github.com/aristath/runconsole/internal/model"
)

// LogSource exposes the buffered server log entries.
type LogSource interface {
	Entries() []model.LogEntry
}

// LogPaneModel tails the server log stream.
type LogPaneModel struct {
	source    LogSource
	status    logstream.Status
	attempt   int
	count     int
	viewport  viewport.Model
	width     int
	height    int
	focused   bool
	updateTag int // for debouncing
}

// NewLogPaneModel creates a new log pane model reading from source.
func NewLogPaneModel(source LogSource) LogPaneModel {
	return LogPaneModel{source: source, viewport: viewport.New(0, 0)}
}

// logTickMsg is used for debouncing log viewport updates.
type logTickMsg struct {
	tag int
}

// Update handles messages for the log pane.
func (m LogPaneModel) Update(msg tea.Msg) (LogPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.focused {
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case logstream.AppendedEvent:
		m.updateTag++
		tag := m.updateTag
		return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
			return logTickMsg{tag: tag}
		})

	case logstream.StatusEvent:
		m.status = msg.Status
		m.attempt = msg.Attempt
		if msg.Status == logstream.StatusLive {
			// Live follows a backlog reset; reload even without new appends.
			m.updateViewportContent()
		}

	case logTickMsg:
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// View renders the log pane.
func (m LogPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		StyleTitle.Render(fmt.Sprintf("Server logs (%d)", m.count)),
		" ",
		StatusBadge(m.status, m.attempt),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View()))
}

// StatusBadge renders the log stream liveness indicator.
func StatusBadge(status logstream.Status, attempt int) string {
	switch status {
	case logstream.StatusLive:
		return StyleBadgeLive.Render("live")
	case logstream.StatusConnecting:
		return StyleBadgeWarn.Render("connecting")
	case logstream.StatusReconnecting:
		return StyleBadgeWarn.Render(fmt.Sprintf("reconnecting %d", attempt))
	case logstream.StatusDisconnected:
		return StyleBadgeDown.Render("disconnected · r to retry")
	default:
		return StyleBadgeDown.Render(status.String())
	}
}

func (m *LogPaneModel) updateViewportContent() {
	if m.source == nil {
		return
	}
	entries := m.source.Entries()
	m.count = len(entries)

	follow := m.viewport.AtBottom()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, formatLogEntry(e))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if follow {
		m.viewport.GotoBottom()
	}
}

func formatLogEntry(e model.LogEntry) string {
	ts := "--:--:--"
	if !e.Timestamp.IsZero() {
		ts = e.Timestamp.Local().Format(time.TimeOnly)
	}
	line := fmt.Sprintf("%s %s %s %s", StyleHelp.Render(ts), levelStyle(e.Level).Render(fmt.Sprintf("%-5s", strings.ToUpper(e.Level))), StyleHelp.Render(e.Source), e.Message)
	if e.Traceback != "" {
		line += "\n" + StyleError.Render(indent(strings.TrimRight(e.Traceback, "\n"), "    "))
	}
	return line
}

func levelStyle(level string) lipgloss.Style {
	switch strings.ToUpper(level) {
	case "ERROR", "CRITICAL":
		return StyleStatusFailed
	case "WARNING", "WARN":
		return StyleStatusRunning
	case "DEBUG":
		return StyleStatusPending
	default:
		return StyleStatusComplete
	}
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func (m *LogPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-4, 10)
	m.viewport.Height = max(m.height-3, 1)
}

// SetSize updates the pane dimensions.
func (m *LogPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *LogPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
