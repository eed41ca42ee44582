package pad

import "github.com/charmbracelet/lipgloss"

// Color Palette
// Single source of truth for pad colors.
var (
	salmonPink  = lipgloss.Color("#FFB3BA") // primary accent
	coralPink   = lipgloss.Color("#FFCCCB") // secondary accent
	mintGreen   = lipgloss.Color("#A8E6CF") // success states
	mutedGray   = lipgloss.Color("#6B7280") // secondary text
	brightWhite = lipgloss.Color("#F9FAFB") // primary text
	pickerBg    = lipgloss.Color("#374151") // selected picker row
)

var (
	// Tab bar
	tabStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true).
			Padding(0, 1)

	managedMarkStyle = lipgloss.NewStyle().
				Foreground(mintGreen)

	// Status bar
	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Padding(0, 1)

	statusOKStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true).
			Padding(0, 1)

	// Overlays
	overlayBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1)

	overlayTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(salmonPink)

	overlayTextStyle = lipgloss.NewStyle().
				Foreground(brightWhite)

	overlayHelpStyle = lipgloss.NewStyle().
				Foreground(mutedGray).
				Italic(true)

	pickerItemStyle = lipgloss.NewStyle().
			Foreground(coralPink)

	pickerDetailStyle = lipgloss.NewStyle().
				Foreground(mutedGray)
)
