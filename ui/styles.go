package ui

import "github.com/charmbracelet/lipgloss"

const ellipsis = "…"

var (
	green  = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#04B575"}
	yellow = lipgloss.AdaptiveColor{Light: "#B58900", Dark: "#ECFD65"}
	red    = lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F87"}
	gray   = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}

	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#5A56E0")).
			Padding(0, 1).
			Render

	statusDetailStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Padding(0, 1).
				Render

	errorStyle = lipgloss.NewStyle().
			Foreground(red).
			Render

	previewStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#3C3C3C", Dark: "#DDDDDD"}).
			PaddingLeft(2)
)
