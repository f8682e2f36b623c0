package tui

// Keybinding constants
const (
	KeyTab       = "tab"
	KeyShiftTab  = "shift+tab"
	KeyQuit      = "q"
	KeyCtrlC     = "ctrl+c"
	KeyPane1     = "1"
	KeyPane2     = "2"
	KeyPane3     = "3"
	KeyPane4     = "4"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyJ         = "j"
	KeyK         = "k"
	KeySettings  = "s"
	KeyCommand   = "/"
	KeyFormat    = "f"
	KeyReconnect = "r"
	KeyEnter     = "enter"
	KeyEsc       = "esc"
)

// HelpView returns a one-line help bar with common keybindings.
func HelpView() string {
	return StyleHelp.Render("/: command | enter: run | f: output format | r: reconnect logs | Tab: cycle focus | 1-4: jump to pane | j/k: scroll | s: settings | q: quit")
}
