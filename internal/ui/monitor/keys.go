package monitor

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the presence monitor.
type KeyMap struct {
	// Follow selection within the roster.
	Up   key.Binding
	Down key.Binding

	// Unfollow clears the followed collaborator.
	Unfollow key.Binding

	// Retry redials after a lost connection.
	Retry key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in binding set. Vim-style navigation (j/k)
// alongside arrow keys.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "follow prev"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "follow next"),
	),
	Unfollow: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "unfollow"),
	),
	Retry: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reconnect"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
