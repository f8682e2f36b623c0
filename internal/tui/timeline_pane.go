package tui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/runconsole/internal/model"
	"github.com/aristath/runconsole/internal/run"
	"github.com/aristath/runconsole/internal/timeline"
)

const timelineLabelWidth = 14

// TimelinePaneModel draws the execution trace of a finished run as bars.
type TimelinePaneModel struct {
	opts    timeline.Options
	trace   *model.Trace
	chart   timeline.Timeline
	width   int
	height  int
	focused bool
}

// NewTimelinePaneModel creates a new timeline pane model.
func NewTimelinePaneModel(opts timeline.Options) TimelinePaneModel {
	return TimelinePaneModel{opts: opts}
}

// Update handles messages for the timeline pane.
func (m TimelinePaneModel) Update(msg tea.Msg) (TimelinePaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case run.UpdatedEvent:
		m.trace = msg.State.Trace
		m.chart = timeline.Build(m.trace, m.opts)
	}
	return m, nil
}

// View renders the timeline pane.
func (m TimelinePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	title := StyleTitle.Render("Timeline")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if m.trace == nil {
		b.WriteString(StyleStatusPending.Render("No trace yet"))
	} else {
		fmt.Fprintf(&b, "%s  total %s  cost $%.4f\n\n",
			StyleHelp.Render(m.chart.Mode.String()), formatMS(m.chart.TotalMS), m.trace.TotalCostUSD)
		b.WriteString(renderTimeline(m.chart, m.width-4))
	}

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

// renderTimeline draws one row per bar: label, track, duration.
func renderTimeline(tl timeline.Timeline, width int) string {
	track := max(width-timelineLabelWidth-10, 10)

	var rows []string
	if tl.Planning != nil {
		rows = append(rows, barRow("planning", StyleReasoning, *tl.Planning, track))
	}
	for _, bar := range tl.Bars {
		rows = append(rows, barRow(bar.StepID, StatusStyle(bar.Status), bar, track))
	}
	if len(rows) == 0 {
		return StyleStatusPending.Render("Trace has no steps")
	}
	return strings.Join(rows, "\n")
}

func barRow(label string, style lipgloss.Style, bar timeline.Bar, track int) string {
	name := fmt.Sprintf("%-*s", timelineLabelWidth, truncate(label, timelineLabelWidth))
	if bar.Placeholder {
		return name + " " + StyleStatusPending.Render(strings.Repeat("·", track)) + " " + StyleHelp.Render("n/a")
	}

	start, length := barSpan(bar, track)
	line := strings.Repeat(" ", start) +
		style.Render(strings.Repeat("█", length)) +
		strings.Repeat(" ", track-start-length)
	return name + " " + line + " " + StyleHelp.Render(formatMS(bar.DurationMS))
}

// barSpan converts a bar's fractions into a start column and a length
// within a track of the given width. Nonzero bars get at least one cell.
func barSpan(bar timeline.Bar, track int) (start, length int) {
	start = int(math.Round(bar.Start * float64(track)))
	start = min(max(start, 0), track)
	length = int(math.Round(bar.DisplayWidth * float64(track)))
	if length == 0 && bar.DisplayWidth > 0 {
		length = 1
	}
	if start+length > track {
		if length > track {
			length = track
		}
		start = track - length
	}
	return start, length
}

func formatMS(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// SetSize updates the pane dimensions.
func (m *TimelinePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *TimelinePaneModel) SetFocused(focused bool) {
	m.focused = focused
}
