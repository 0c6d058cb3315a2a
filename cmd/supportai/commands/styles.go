package commands

import "github.com/charmbracelet/lipgloss"

// Terminal styles for human-readable output. lipgloss drops the colours
// when stdout is not a terminal.
var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)
