package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

// NewProgram returns a new Tea program that speaks text through ctrl.
func NewProgram(cfg Config, ctrl Controller, text string) *tea.Program {
	log.Debug("Starting readaloud TUI", "mode", cfg.Mode, "alt_screen", cfg.AltScreen)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, ctrl, text), opts...)
}
