package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap 定义全局快捷键绑定
// KeyMap defines global keybindings
type KeyMap struct {
	SwitchPanel key.Binding
	Quit        key.Binding
	RunMeeting  key.Binding
	RunAll      key.Binding
	Reset       key.Binding
	Up          key.Binding
	Down        key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
}

// DefaultKeyMap 默认快捷键
// DefaultKeyMap returns default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		SwitchPanel: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch panel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		RunMeeting: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "run meeting"),
		),
		RunAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "run all"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset meeting"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "page down"),
		),
	}
}
