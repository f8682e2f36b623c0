package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/runconsole/internal/layout"
	"github.com/aristath/runconsole/internal/model"
	"github.com/aristath/runconsole/internal/run"
)

// DAGPaneModel draws the step diagram of the current run.
type DAGPaneModel struct {
	opts    layout.Options
	steps   []model.Step
	diagram layout.Diagram
	states  []layout.EdgeState
	width   int
	height  int
	focused bool
}

// NewDAGPaneModel creates a new DAG pane model.
func NewDAGPaneModel(opts layout.Options) DAGPaneModel {
	return DAGPaneModel{opts: opts}
}

// Update handles messages for the DAG pane.
func (m DAGPaneModel) Update(msg tea.Msg) (DAGPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case run.UpdatedEvent:
		m.setSteps(msg.State.Steps)
	}
	return m, nil
}

// SetOptions changes the diagram geometry and re-lays out the current steps.
func (m *DAGPaneModel) SetOptions(opts layout.Options) {
	m.opts = opts
	m.setSteps(m.steps)
}

func (m *DAGPaneModel) setSteps(steps []model.Step) {
	m.steps = steps
	m.diagram = layout.Compute(steps, m.opts)
	m.states = m.diagram.EdgeStates(steps)
}

// View renders the DAG pane.
func (m DAGPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Plan")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n")
	b.WriteString(progressBar(m.steps, min(m.width-12, 40)))
	b.WriteString("\n\n")

	b.WriteString(renderDiagram(m.diagram, m.steps, m.states, m.width-4))

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		MaxHeight(m.height).
		Render(b.String())
}

// progressBar renders step counts as a segmented bar.
func progressBar(steps []model.Step, barWidth int) string {
	total := len(steps)
	if total == 0 || barWidth <= 0 {
		return StyleStatusPending.Render("no steps")
	}
	counts := make(map[model.StepStatus]int, 5)
	for _, s := range steps {
		counts[s.Status]++
	}

	completedWidth := (counts[model.StepCompleted] * barWidth) / total
	failedWidth := (counts[model.StepFailed] * barWidth) / total
	runningWidth := (counts[model.StepRunning] * barWidth) / total
	pendingWidth := barWidth - completedWidth - failedWidth - runningWidth

	bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
	bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
	bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
	bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))

	done := counts[model.StepCompleted] + counts[model.StepFailed]
	return fmt.Sprintf("[%s]  %d/%d", bar, done, total)
}

// renderDiagram draws branch columns side by side, the aggregation stage
// centered beneath them, any overflow below that, and the edge list last.
func renderDiagram(d layout.Diagram, steps []model.Step, states []layout.EdgeState, width int) string {
	if len(d.Nodes) == 0 {
		return StyleStatusPending.Render("Waiting for plan...")
	}
	width = max(width, 12)
	statuses := model.StatusIndex(steps)

	var sections []string
	if d.Cyclic {
		sections = append(sections, StyleError.Render("dependency cycle detected"))
	}

	if len(d.Columns) > 0 {
		colWidth := max(width/len(d.Columns)-1, 10)
		cols := make([]string, len(d.Columns))
		for c, group := range d.Columns {
			lines := []string{StyleTitle.Render(truncate(group, colWidth-2))}
			for _, n := range regionNodes(d, layout.RegionBranch, c) {
				lines = append(lines, nodeLine(n.ID, statuses[n.ID], colWidth))
			}
			cols[c] = lipgloss.NewStyle().Width(colWidth).Render(strings.Join(lines, "\n"))
		}
		sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	}

	if agg := regionNodes(d, layout.RegionAggregation, -1); len(agg) > 0 {
		lines := make([]string, 0, len(agg)+1)
		if len(d.Columns) > 0 {
			lines = append(lines, "▼")
		}
		for _, n := range agg {
			lines = append(lines, nodeLine(n.ID, statuses[n.ID], width))
		}
		sections = append(sections, lipgloss.PlaceHorizontal(width, lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center, lines...)))
	}

	if extra := regionNodes(d, layout.RegionOverflow, -1); len(extra) > 0 {
		lines := []string{StyleStatusPending.Render("more")}
		for _, n := range extra {
			lines = append(lines, nodeLine(n.ID, statuses[n.ID], width))
		}
		sections = append(sections, lipgloss.PlaceHorizontal(width, lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center, lines...)))
	}

	if len(d.Edges) > 0 {
		var b strings.Builder
		if d.Fallback {
			b.WriteString(StyleStatusPending.Render("sequential order"))
			b.WriteString("\n")
		}
		for i, e := range d.Edges {
			state := layout.EdgeDormant
			if i < len(states) {
				state = states[i]
			}
			b.WriteString(EdgeStyle(state).Render(fmt.Sprintf("%s → %s", e.From, e.To)))
			b.WriteString(StyleHelp.Render(" " + state.String()))
			b.WriteString("\n")
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	return strings.Join(sections, "\n\n")
}

// regionNodes returns the nodes of a region in row order. Column filters
// branch nodes and is ignored elsewhere.
func regionNodes(d layout.Diagram, region layout.Region, column int) []layout.Node {
	var out []layout.Node
	for _, n := range d.Nodes {
		if n.Region != region {
			continue
		}
		if region == layout.RegionBranch && n.Column != column {
			continue
		}
		out = append(out, n)
	}
	// Nodes are emitted in input order, which already matches row order
	// inside a region.
	return out
}

func nodeLine(id string, status model.StepStatus, width int) string {
	return StatusIcon(status) + " " + StatusStyle(status).Render(truncate(id, width-3))
}

// SetSize updates the pane dimensions.
func (m *DAGPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *DAGPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
