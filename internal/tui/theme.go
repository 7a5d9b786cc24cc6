package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	Header   lipgloss.Style
	Panel    lipgloss.Style
	Selected lipgloss.Style
	Field    lipgloss.Style
	Focus    lipgloss.Style
	Muted    lipgloss.Style
	Accent   lipgloss.Style
	Success  lipgloss.Style
	Alert    lipgloss.Style
	Danger   lipgloss.Style
	Capture  lipgloss.Style
}

func defaultTheme() theme {
	accent := lipgloss.Color("#00FFFF")
	secondary := lipgloss.Color("#7D7D7D")
	success := lipgloss.Color("#00FF00")
	alert := lipgloss.Color("#FFBF00")
	danger := lipgloss.Color("#FF0055")

	return theme{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondary).
			Padding(0, 1),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		Field: lipgloss.NewStyle().
			Width(14),
		Focus: lipgloss.NewStyle().
			Reverse(true),
		Muted: lipgloss.NewStyle().
			Foreground(secondary),
		Accent: lipgloss.NewStyle().
			Foreground(accent),
		Success: lipgloss.NewStyle().
			Foreground(success),
		Alert: lipgloss.NewStyle().
			Foreground(alert),
		Danger: lipgloss.NewStyle().
			Foreground(danger),
		Capture: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(alert).
			Padding(0, 1),
	}
}
