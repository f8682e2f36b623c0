package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/runconsole/internal/config"
	"github.com/aristath/runconsole/internal/model"
)

// SettingsPaneModel manages the settings form overlay.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.ConsoleConfig
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings (strings for Huh)
	saveTarget       string
	baseURL          string
	token            string
	outputFormat     string
	logCapacity      string
	maxAttempts      string
	aggregationGroup string
	maxColumns       string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.ConsoleConfig, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
	}
	m.loadFields()
	m.buildForm()
	return m
}

// loadFields copies the current config into the form bindings.
func (m *SettingsPaneModel) loadFields() {
	server, _ := m.config.Server()
	m.saveTarget = "global"
	m.baseURL = server.BaseURL
	m.token = server.Token
	m.outputFormat = m.config.Run.OutputFormat
	if m.outputFormat == "" {
		m.outputFormat = string(model.FormatJSON)
	}
	m.logCapacity = strconv.Itoa(m.config.Logs.Capacity)
	m.maxAttempts = strconv.Itoa(m.config.Logs.MaxAttempts)
	m.aggregationGroup = m.config.Layout.AggregationGroup
	m.maxColumns = strconv.Itoa(m.config.Layout.MaxColumns)
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global (~/.runconsole/config.json)", "global"),
					huh.NewOption("Project (.runconsole/config.json)", "project"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Key("baseURL").
				Title(fmt.Sprintf("Server URL (%s)", m.config.ActiveServer)).
				Value(&m.baseURL).
				Placeholder("http://localhost:8000").
				Validate(validateURLField),

			huh.NewInput().
				Key("token").
				Title("Access Token").
				EchoMode(huh.EchoModePassword).
				Value(&m.token),

			huh.NewSelect[string]().
				Key("outputFormat").
				Title("Output Format").
				Options(
					huh.NewOption("JSON", string(model.FormatJSON)),
					huh.NewOption("CSV", string(model.FormatCSV)),
					huh.NewOption("Summary", string(model.FormatSummary)),
				).
				Value(&m.outputFormat),
		).Title("Server"),

		huh.NewGroup(
			huh.NewInput().
				Key("logCapacity").
				Title("Log Buffer Size").
				Value(&m.logCapacity).
				Validate(positiveInt),

			huh.NewInput().
				Key("maxAttempts").
				Title("Log Reconnect Attempts").
				Value(&m.maxAttempts).
				Validate(positiveInt),
		).Title("Logs"),

		huh.NewGroup(
			huh.NewInput().
				Key("aggregationGroup").
				Title("Aggregation Group").
				Value(&m.aggregationGroup).
				Placeholder("analysis"),

			huh.NewInput().
				Key("maxColumns").
				Title("Max Branch Columns (0 = unlimited)").
				Value(&m.maxColumns).
				Validate(nonNegativeInt),
		).Title("Diagram"),
	)
}

func validateURLField(s string) error {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return fmt.Errorf("must start with http:// or https://")
	}
	return nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}

func nonNegativeInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("must be zero or more")
	}
	return nil
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyEsc:
			// Cancel without saving
			m.visible = false
			m.saved = false
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.applyFormToConfig()

		targetPath := m.globalPath
		if m.saveTarget == "project" {
			targetPath = m.projectPath
		}

		if err := m.config.Validate(); err != nil {
			m.err = err
			m.saved = false
		} else if err := config.Save(m.config, targetPath); err != nil {
			m.err = err
			m.saved = false
		} else {
			m.saved = true
			m.err = nil
			m.visible = false
		}
	}

	return m, cmd
}

// applyFormToConfig copies form field values back to the config struct.
func (m *SettingsPaneModel) applyFormToConfig() {
	server := m.config.Servers[m.config.ActiveServer]
	server.BaseURL = strings.TrimSpace(m.baseURL)
	server.Token = strings.TrimSpace(m.token)
	if m.config.Servers == nil {
		m.config.Servers = make(map[string]config.ServerConfig)
	}
	m.config.Servers[m.config.ActiveServer] = server

	m.config.Run.OutputFormat = m.outputFormat
	if n, err := strconv.Atoi(strings.TrimSpace(m.logCapacity)); err == nil {
		m.config.Logs.Capacity = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(m.maxAttempts)); err == nil {
		m.config.Logs.MaxAttempts = n
	}
	m.config.Layout.AggregationGroup = strings.TrimSpace(m.aggregationGroup)
	if n, err := strconv.Atoi(strings.TrimSpace(m.maxColumns)); err == nil {
		m.config.Layout.MaxColumns = n
	}
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string
	if m.err != nil {
		content = StyleError.Render(fmt.Sprintf("✗ Error saving: %v", m.err)) +
			"\n\n" + StyleHelp.Render("esc: close")
	} else {
		content = m.form.View() + "\n" +
			StyleHelp.Render("Server and log changes apply on next start.")
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane. Showing it rebuilds the form
// from the current config.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	if v {
		m.loadFields()
		m.buildForm()
		if m.width > 0 {
			m.form.WithWidth(m.width - 8).WithHeight(m.height - 8)
		}
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}

// Saved reports whether the last form submission was written to disk.
func (m SettingsPaneModel) Saved() bool {
	return m.saved
}
