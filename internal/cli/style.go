package cli

import "github.com/charmbracelet/lipgloss"

var (
	Red    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	Green  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	Yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	Cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	Dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	Bold   = lipgloss.NewStyle().Bold(true)
)
