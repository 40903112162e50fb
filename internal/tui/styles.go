package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Title       lipgloss.Style
	Muted       lipgloss.Style
	Cell        lipgloss.Style
	FocusedCell lipgloss.Style
	FieldError  lipgloss.Style
	Alert       lipgloss.Style
	Success     lipgloss.Style
	Help        lipgloss.Style
}

func defaultStyles() styles {
	cell := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(3).
		Align(lipgloss.Center)
	return styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),

		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),

		Cell: cell,

		FocusedCell: cell.
			BorderForeground(lipgloss.Color("212")),

		FieldError: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),

		Alert: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("203")).
			Padding(0, 1),

		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true),

		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}
