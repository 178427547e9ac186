// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the progress view.
type KeyMap struct {
	// Quit exits once the run has finished.
	Quit key.Binding

	// Cancel stops a run in progress.
	Cancel key.Binding

	// Help toggles the issue list between short and full.
	Help key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "enter"),
			key.WithHelp("q", "quit"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("ctrl+c", "cancel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "all issues"),
		),
	}
}

// RunningHelp returns the hints shown while a run is in progress.
func (k *KeyMap) RunningHelp() []key.Binding {
	return []key.Binding{k.Cancel, k.Help}
}

// FinishedHelp returns the hints shown after the run ends.
func (k *KeyMap) FinishedHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}
