// Package styles provides the colour theme and text styles for the
// chat interface.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is the chat colour palette.
type Theme struct {
	// User colours the operator's speaker label.
	User lipgloss.Color

	// Assistant colours the assistant's speaker label.
	Assistant lipgloss.Color

	// Foreground is the default text colour.
	Foreground lipgloss.Color

	// Muted is for citations, hints and the waiting indicator.
	Muted lipgloss.Color

	// Error indicates a failed request.
	Error lipgloss.Color

	// Border frames the input area.
	Border lipgloss.Color
}

// DefaultTheme returns the standard palette. Colours are chosen to
// read on both light and dark terminals.
func DefaultTheme() *Theme {
	return &Theme{
		User:       lipgloss.Color("#5F87D7"), // Blue
		Assistant:  lipgloss.Color("#2AA198"), // Teal
		Foreground: lipgloss.Color("#C6C6C6"), // Light gray
		Muted:      lipgloss.Color("#808080"), // Medium gray
		Error:      lipgloss.Color("#D75F5F"), // Red
		Border:     lipgloss.Color("#4E4E4E"), // Border gray
	}
}

// Styles contains pre-built lipgloss styles for the chat view.
type Styles struct {
	theme *Theme

	// User renders the operator's speaker label.
	User lipgloss.Style

	// Assistant renders the assistant's speaker label.
	Assistant lipgloss.Style

	// Normal renders message text.
	Normal lipgloss.Style

	// Muted renders citations, hints and the waiting indicator.
	Muted lipgloss.Style

	// Error renders failed requests.
	Error lipgloss.Style

	// InputField frames the question input.
	InputField lipgloss.Style

	// Help renders the key hint line.
	Help lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		theme: theme,

		User: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.User),

		Assistant: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Assistant),

		Normal: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Error: lipgloss.NewStyle().
			Foreground(theme.Error),

		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		Help: lipgloss.NewStyle().
			Foreground(theme.Muted),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}
