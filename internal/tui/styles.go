package tui

import "github.com/charmbracelet/lipgloss"

// styles contains all lipgloss styles used by the TUI.
var styles = struct {
	FocusedBorder   lipgloss.Style
	UnfocusedBorder lipgloss.Style

	PaneTitle lipgloss.Style
	Footer    lipgloss.Style
	Divider   lipgloss.Style

	VerdictIdle      lipgloss.Style
	VerdictRunning   lipgloss.Style
	VerdictPrompting lipgloss.Style
	VerdictUsage     lipgloss.Style

	LogInfo    lipgloss.Style
	LogSuccess lipgloss.Style
	LogWarning lipgloss.Style
	LogError   lipgloss.Style
	LogDebug   lipgloss.Style

	TimerRunning lipgloss.Style
	TimerPaused  lipgloss.Style
	TimerStopped lipgloss.Style
}{
	FocusedBorder: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")),

	UnfocusedBorder: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")),

	PaneTitle: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")),

	Footer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Divider: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	VerdictIdle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	VerdictRunning: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("82")),

	VerdictPrompting: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("214")),

	VerdictUsage: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("196")),

	LogInfo: lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")),

	LogSuccess: lipgloss.NewStyle().
		Foreground(lipgloss.Color("114")),

	LogWarning: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	LogError: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	LogDebug: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	TimerRunning: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("82")),

	TimerPaused: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	TimerStopped: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),
}

// colorForTag resolves a terminal's ColorTag into a lipgloss color,
// falling back to a neutral gray for unrecognized tags.
func colorForTag(tag string) lipgloss.Color {
	switch tag {
	case "red":
		return lipgloss.Color("196")
	case "green":
		return lipgloss.Color("82")
	case "blue":
		return lipgloss.Color("39")
	case "yellow":
		return lipgloss.Color("220")
	case "magenta":
		return lipgloss.Color("201")
	case "cyan":
		return lipgloss.Color("51")
	default:
		return lipgloss.Color("245")
	}
}
