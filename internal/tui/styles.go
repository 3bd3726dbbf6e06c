package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	accentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	upStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	lockedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	mutedStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Bold(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)

	glyphLocked   = "🔒"
	glyphUnlocked = "🔓"
)

// VoteStyle colours a vote count by sign.
func VoteStyle(votes int) lipgloss.Style {
	switch {
	case votes > 0:
		return upStyle
	case votes < 0:
		return downStyle
	default:
		return mutedStyle
	}
}

// LockGlyph is the padlock shown next to a joke.
func LockGlyph(locked bool) string {
	if locked {
		return glyphLocked
	}
	return glyphUnlocked
}
