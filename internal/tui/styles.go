package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#4f46e5", Dark: "#a5b4fc"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
	colorDanger = lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#f87171"}
	colorOK     = lipgloss.AdaptiveColor{Light: "#15803d", Dark: "#4ade80"}

	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	labelStyle    = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorDanger)
	successStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorOK)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1)
	dangerBox     = boxStyle.BorderForeground(colorDanger)

	priorityStyles = map[string]lipgloss.Style{
		"high":   lipgloss.NewStyle().Foreground(colorDanger),
		"medium": lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#b45309", Dark: "#fbbf24"}),
		"low":    lipgloss.NewStyle().Foreground(colorOK),
	}
	statusStyles = map[string]lipgloss.Style{
		"draft":     mutedStyle,
		"ready":     lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1d4ed8", Dark: "#93c5fd"}),
		"automated": lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6d28d9", Dark: "#c4b5fd"}),
	}
)
