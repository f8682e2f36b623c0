package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/runconsole/internal/layout"
	"github.com/aristath/runconsole/internal/model"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Status styles
var (
	StyleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusComplete = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	StyleStatusSkipped = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244")).
				Italic(true)
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	StyleReasoning = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246")).
			Italic(true)

	StyleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	StyleSelected = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))

	StyleNode = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1)

	StyleBadgeLive = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("green")).
			Padding(0, 1)

	StyleBadgeWarn = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("yellow")).
			Padding(0, 1)

	StyleBadgeDown = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("red")).
			Padding(0, 1)
)

// StatusStyle returns the style for a step status.
func StatusStyle(s model.StepStatus) lipgloss.Style {
	switch s {
	case model.StepRunning:
		return StyleStatusRunning
	case model.StepCompleted:
		return StyleStatusComplete
	case model.StepFailed:
		return StyleStatusFailed
	case model.StepSkipped:
		return StyleStatusSkipped
	default:
		return StyleStatusPending
	}
}

// StatusIcon returns a styled status indicator.
func StatusIcon(s model.StepStatus) string {
	switch s {
	case model.StepRunning:
		return StyleStatusRunning.Render("●")
	case model.StepCompleted:
		return StyleStatusComplete.Render("✓")
	case model.StepFailed:
		return StyleStatusFailed.Render("✗")
	case model.StepSkipped:
		return StyleStatusSkipped.Render("–")
	default:
		return StyleStatusPending.Render("○")
	}
}

// EdgeStyle returns the style for an edge state.
func EdgeStyle(s layout.EdgeState) lipgloss.Style {
	switch s {
	case layout.EdgeResolved:
		return StyleStatusComplete
	case layout.EdgeActive:
		return StyleStatusRunning
	default:
		return StyleStatusPending
	}
}
