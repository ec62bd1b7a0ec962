// Package tui provides the terminal user interface.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lukaszraczylo/localserve/internal/manager"
)

// Colors, tuned for dark terminals.
var (
	colorPrimary    = lipgloss.Color("205") // Pink/Magenta
	colorSuccess    = lipgloss.Color("42")  // Green
	colorWarning    = lipgloss.Color("220") // Yellow
	colorError      = lipgloss.Color("196") // Red
	colorMuted      = lipgloss.Color("245") // Gray
	colorAccent     = lipgloss.Color("141") // Light purple
	colorHeader     = lipgloss.Color("220") // Yellow for headers
	colorSelectedBg = lipgloss.Color("236")
	colorSelectedFg = lipgloss.Color("255")
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorHeader).
		Padding(0, 1)
)

// Status indicators
var (
	enabledStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	disabledStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	pendingStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	errorIndicatorStyle = lipgloss.NewStyle().
				Foreground(colorError)
)

// Status bar and help
var (
	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	helpBarStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorHeader).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)

var (
	errorMsgStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true).
			MarginTop(1)

	successMsgStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			MarginTop(1)

	updateStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)
)

// Form styles
var (
	inputLabelStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)

	inputFocusStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)
)

// Dialog styles
var (
	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	pickerSelectedStyle = lipgloss.NewStyle().
				Background(colorSelectedBg).
				Foreground(colorSelectedFg).
				Padding(0, 1)
)

// Indicator returns the status glyph for a server state.
func Indicator(state manager.State, pending, hasError bool) string {
	switch {
	case hasError:
		return errorIndicatorStyle.Render("✗")
	case pending:
		return pendingStyle.Render("◐")
	case state == manager.Linked:
		return enabledStyle.Render("●")
	case state == manager.HostOnly:
		return errorIndicatorStyle.Render("!")
	default:
		return disabledStyle.Render("○")
	}
}

// StatusText returns the unstyled status label for a server state.
func StatusText(state manager.State, pending, hasError bool) string {
	switch {
	case hasError:
		return "✗ Error"
	case pending:
		return "◐ Pending"
	case state == manager.Linked:
		return "● Enabled"
	case state == manager.HostOnly:
		return "! Orphaned"
	default:
		return "○ Disabled"
	}
}

// WrapHelpText wraps help text to fit within maxWidth, splitting on bullet
// separators. A maxWidth of 0 or less disables wrapping.
func WrapHelpText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return helpDescStyle.Render(text)
	}

	const separator = " • "
	parts := strings.Split(text, separator)

	var lines []string
	var current string
	for _, part := range parts {
		switch {
		case current == "":
			current = part
		case lipgloss.Width(current+separator+part) > maxWidth:
			lines = append(lines, current)
			current = part
		default:
			current += separator + part
		}
	}
	if current != "" {
		lines = append(lines, current)
	}

	for i, line := range lines {
		lines[i] = helpDescStyle.Render(line)
	}
	return strings.Join(lines, "\n")
}
