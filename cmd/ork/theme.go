package main

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual styling for ork CLI output.
type Theme struct {
	Primary lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Muted   lipgloss.Color
}

// DefaultTheme returns the default theme for ork output.
func DefaultTheme() Theme {
	return Theme{
		Primary: lipgloss.Color("12"),  // Blue
		Success: lipgloss.Color("10"),  // Green
		Warning: lipgloss.Color("11"),  // Yellow
		Error:   lipgloss.Color("9"),   // Red
		Muted:   lipgloss.Color("240"), // Gray
	}
}

// headerStyle renders section headers in status output.
func (t Theme) headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
}

// statusStyle picks a color for a run status string.
func (t Theme) statusStyle(status string) lipgloss.Style {
	switch status {
	case "active":
		return lipgloss.NewStyle().Foreground(t.Warning)
	case "completed":
		return lipgloss.NewStyle().Foreground(t.Success)
	default:
		return lipgloss.NewStyle().Foreground(t.Muted)
	}
}
