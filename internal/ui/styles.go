// Package ui holds the terminal styles and table rendering shared by the CLI
// and the live dashboard.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/streamledger/internal/handling"
)

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	BlueColor      = lipgloss.Color("#60A5FA") // Blue
	OrangeColor    = lipgloss.Color("#FB923C") // Orange

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)

	// Base styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		Padding(0, 1)

	Cell = lipgloss.NewStyle().Padding(0, 1)
)

// statusColors maps handling statuses to their display color.
var statusColors = map[handling.Status]lipgloss.Color{
	handling.AvailableByDefault:                 MutedColor,
	handling.Running:                            BlueColor,
	handling.Completed:                          SecondaryColor,
	handling.Failed:                             ErrorColor,
	handling.AvailableAfterFailure:              WarningColor,
	handling.AvailableAfterSelfCancellation:     MutedColor,
	handling.AvailableAfterExternalCancellation: WarningColor,
	handling.DisabledForRecord:                  OrangeColor,
	handling.DisabledForStream:                  OrangeColor,
}

// StatusColor returns the display color for a handling status.
func StatusColor(s handling.Status) lipgloss.Color {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return MutedColor
}

// StatusStyle returns a bold style in the status color.
func StatusStyle(s handling.Status) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(StatusColor(s))
}

// RenderStatus renders the status name in its color.
func RenderStatus(s handling.Status) string {
	return StatusStyle(s).Render(s.String())
}
