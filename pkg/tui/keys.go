package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds all walkthrough key bindings.
type keyMap struct {
	Advance  key.Binding
	Continue key.Binding
	Up       key.Binding
	Down     key.Binding
	Approve  key.Binding
	Dismiss  key.Binding
	Results  key.Binding
	Quit     key.Binding
	Help     key.Binding
}

var keys = keyMap{
	Advance: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter", "run next action"),
	),
	Continue: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "run to end"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "browse up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "browse down"),
	),
	Approve: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "approve"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("n", "esc"),
		key.WithHelp("n", "dismiss"),
	),
	Results: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "results"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
}

// keyBarText renders the context-sensitive key hint string.
func keyBarText(gated, done bool) string {
	if gated {
		return keyStyle.Render("y") + keyDescStyle.Render(":approve") + "  " +
			keyStyle.Render("n") + keyDescStyle.Render(":dismiss") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	}
	if done {
		return keyStyle.Render("↑↓") + keyDescStyle.Render(":browse") + "  " +
			keyStyle.Render("v") + keyDescStyle.Render(":results") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	}
	return keyStyle.Render("enter") + keyDescStyle.Render(":next") + "  " +
		keyStyle.Render("c") + keyDescStyle.Render(":continue") + "  " +
		keyStyle.Render("↑↓") + keyDescStyle.Render(":browse") + "  " +
		keyStyle.Render("v") + keyDescStyle.Render(":results") + "  " +
		keyStyle.Render("q") + keyDescStyle.Render(":quit")
}
