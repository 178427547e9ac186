// Package status provides the status bar component for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/strata-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/strata-cli/internal/adapters/driving/tui/styles"
)

// State represents the run state for display.
type State string

const (
	StateRunning    State = "running"
	StateCancelling State = "cancelling"
	StateFinished   State = "finished"
	StateError      State = "error"
)

// Bar displays run status, spend and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	cost    float64
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateRunning,
		width:  80,
	}
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (s *Bar) renderLeft() string {
	spend := fmt.Sprintf("$%.4f", s.cost)
	switch s.state {
	case StateCancelling:
		return s.styles.Warning.Render("Cancelling...") + " " + s.styles.Muted.Render(spend)
	case StateError:
		msg := "Error"
		if s.message != "" {
			msg = "Error: " + s.message
		}
		return s.styles.Error.Render(msg)
	case StateFinished:
		return s.styles.Success.Render(s.message) + " " + s.styles.Muted.Render(spend)
	default:
		return s.styles.Normal.Render(s.message) + " " + s.styles.Muted.Render(spend)
	}
}

func (s *Bar) renderRight() string {
	bindings := s.keymap.RunningHelp()
	if s.state == StateFinished || s.state == StateError {
		bindings = s.keymap.FinishedHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets the status message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetCost sets the spend shown next to the message.
func (s *Bar) SetCost(cost float64) {
	s.cost = cost
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}
