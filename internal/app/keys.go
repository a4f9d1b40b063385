package app

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	ToggleFocus key.Binding
	Help        key.Binding
	Quit        key.Binding
	SlotPicker  key.Binding
	JumpPage    key.Binding
}

var GlobalKeys = KeyMap{
	ToggleFocus: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "toggle focus"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	SlotPicker: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "retest slots"),
	),
	JumpPage: key.NewBinding(
		key.WithKeys("f1", "f2", "f3", "f4"),
		key.WithHelp("f1-f4", "pages"),
	),
}

// pageJumps maps the JumpPage keys to pages in sidebar order.
var pageJumps = map[string]PageID{
	"f1": PanelPage,
	"f2": LogPage,
	"f3": HistoryPage,
	"f4": SettingsPage,
}
