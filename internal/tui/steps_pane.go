package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/runconsole/internal/model"
	"github.com/aristath/runconsole/internal/run"
)

const stepListWidth = 28

// StepsPaneModel shows the step list of the current run and the details of
// the selected step in a scrollable viewport.
type StepsPaneModel struct {
	state       run.RunState
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int // for debouncing
}

// NewStepsPaneModel creates a new steps pane model.
func NewStepsPaneModel() StepsPaneModel {
	return StepsPaneModel{viewport: viewport.New(0, 0)}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the steps pane.
func (m StepsPaneModel) Update(msg tea.Msg) (StepsPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.state.Steps)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case run.UpdatedEvent:
		if msg.State.Command != m.state.Command || len(msg.State.Steps) < len(m.state.Steps) {
			m.selectedIdx = 0
		}
		m.state = msg.State
		if m.selectedIdx >= len(m.state.Steps) {
			m.selectedIdx = max(len(m.state.Steps)-1, 0)
		}
		m.updateTag++
		tag := m.updateTag
		return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
			return tickMsg{tag: tag}
		})

	case tickMsg:
		// Only update if this tick matches the current tag (debouncing)
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// View renders the steps pane.
func (m StepsPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - stepListWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderStepList(stepListWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m StepsPaneModel) renderStepList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render(fmt.Sprintf("Steps %d/%d", m.state.Completed, len(m.state.Steps)))
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.state.Steps) == 0 {
		b.WriteString(StyleStatusPending.Render(emptyStepsText(m.state)))
	}
	for i, step := range m.state.Steps {
		line := fmt.Sprintf("%s %s", StatusIcon(step.Status), truncate(stepLabel(step), width-3))
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

func emptyStepsText(s run.RunState) string {
	switch s.Conn {
	case run.StateIdle:
		return "No run yet"
	case run.StateConnecting:
		return "Connecting..."
	case run.StateError:
		return "Run failed"
	}
	if s.Phase == run.PhasePlanning || s.Phase == run.PhaseReplanning {
		return "Planning..."
	}
	return "Waiting for plan..."
}

// stepLabel is the short list label of a step.
func stepLabel(s model.Step) string {
	if s.Target != "" {
		return s.ID + " " + s.Target
	}
	return s.ID + " " + s.Action
}

// updateViewportContent updates the viewport with the selected step's details.
func (m *StepsPaneModel) updateViewportContent() {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.state.Steps) {
		m.viewport.SetContent(runSummary(m.state))
		return
	}
	m.viewport.SetContent(stepDetail(m.state.Steps[m.selectedIdx]) + "\n\n" + runSummary(m.state))
}

func stepDetail(s model.Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", StatusIcon(s.Status), StyleTitle.Render(s.ID))
	fmt.Fprintf(&b, "action:   %s\n", s.Action)
	if s.Target != "" {
		fmt.Fprintf(&b, "target:   %s\n", s.Target)
	}
	if s.Executor != "" {
		fmt.Fprintf(&b, "executor: %s\n", s.Executor)
	}
	if s.Group != "" {
		fmt.Fprintf(&b, "group:    %s\n", s.Group)
	}
	if len(s.DependsOn) > 0 {
		fmt.Fprintf(&b, "after:    %s\n", strings.Join(s.DependsOn, ", "))
	}
	if s.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", s.Description)
	}
	if s.Error != "" {
		fmt.Fprintf(&b, "\n%s\n", StyleError.Render(s.Error))
	}
	if len(s.Result) > 0 {
		fmt.Fprintf(&b, "\nresult:\n%s\n", prettyJSON(s.Result))
	}
	return strings.TrimRight(b.String(), "\n")
}

func runSummary(s run.RunState) string {
	var b strings.Builder
	if s.Command != "" {
		fmt.Fprintf(&b, "command: %s\n", s.Command)
	}
	if s.Reasoning != "" {
		fmt.Fprintf(&b, "%s\n", StyleReasoning.Render(s.Reasoning))
	}
	if s.ReplanReason != "" {
		fmt.Fprintf(&b, "replanning: %s\n", s.ReplanReason)
	}
	if s.Error != "" {
		fmt.Fprintf(&b, "%s\n", StyleError.Render(s.Error))
	}
	if s.Result != nil {
		fmt.Fprintf(&b, "\nresult (%s, %s):\n%s\n", s.Result.Status, s.Format, prettyJSON(s.Result.Output))
	}
	if b.Len() == 0 {
		return "Press / to enter a command."
	}
	return strings.TrimRight(b.String(), "\n")
}

// prettyJSON indents raw JSON. Non-JSON payloads and JSON strings are shown
// as plain text.
func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func truncate(s string, width int) string {
	if width <= 3 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) > width-3 {
		r = r[:width-3]
	}
	return string(r) + "..."
}

func (m *StepsPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-stepListWidth-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *StepsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *StepsPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
