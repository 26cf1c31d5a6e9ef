// Package tui implements the terminal walkthrough for one trigger's
// action chain: step the chain action by action, answer confirmation
// gates, and inspect accumulated results, rendered as an interactive
// Bubble Tea app.
package tui

import "github.com/charmbracelet/lipgloss"

// Action status glyphs — convey meaning without relying on color alone.
const (
	GlyphPending   = "○"
	GlyphCurrent   = "▸"
	GlyphDone      = "✓"
	GlyphSkipped   = "⏭"
	GlyphAborted   = "■"
	GlyphErrored   = "✗"
	GlyphGate      = "?"
	GlyphDismissed = "⊘"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

// --- Header styles ---

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan).
	Padding(0, 1)

var chainBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("0")).
	Background(colorYellow).
	Padding(0, 1)

// --- Action list styles ---

var (
	actionNormal = lipgloss.NewStyle().
			Foreground(colorWhite)

	actionCurrent = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	actionDone = lipgloss.NewStyle().
			Foreground(colorGreen)

	actionFailed = lipgloss.NewStyle().
			Foreground(colorRed)

	actionSkipped = lipgloss.NewStyle().
			Faint(true)
)

// --- Panel styles ---

var (
	panelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim)

	panelTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			Padding(0, 1)
)

// --- Detail bar styles ---

var (
	detailBarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorBlue)

	detailValueStyle = lipgloss.NewStyle().
				Foreground(colorWhite)
)

// --- Key bar styles ---

var (
	keyStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

// --- Confirmation overlay ---

var overlayBorder = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(colorCyan).
	Padding(1, 2)

var confirmTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorYellow)

// --- Error and summary styles ---

var errorStyle = lipgloss.NewStyle().
	Foreground(colorRed).
	Bold(true)

var spinnerStyle = lipgloss.NewStyle().
	Foreground(colorYellow)

var (
	summaryDoneStyle = lipgloss.NewStyle().
				Foreground(colorGreen).
				Bold(true)

	summaryStoppedStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)
)
