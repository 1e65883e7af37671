package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/readaloud/internal/session"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// StatusDisplay renders the transport state and the active session.
type StatusDisplay struct {
	state        tts.TransportState
	mode         tts.Mode
	units        int
	started      time.Time
	errorMessage string
}

// NewStatusDisplay creates an idle status display.
func NewStatusDisplay() *StatusDisplay {
	return &StatusDisplay{state: tts.StateIdle}
}

// SetState records a transport state change.
func (s *StatusDisplay) SetState(state tts.TransportState) {
	s.state = state
	if state == tts.StatePlaying {
		s.errorMessage = ""
	}
}

// SetSession records the active session.
func (s *StatusDisplay) SetSession(info session.Info) {
	s.mode = info.Mode
	s.units = info.Units
	s.started = info.Started
}

// SetError records the last user-facing error.
func (s *StatusDisplay) SetError(message string) {
	s.errorMessage = message
}

// CompactStatus returns a one-line status for the status bar.
func (s *StatusDisplay) CompactStatus(now time.Time) string {
	style := lipgloss.NewStyle().Foreground(s.stateColor())
	status := style.Render(fmt.Sprintf("%s %s", s.stateIcon(), s.stateLabel()))

	if s.IsActive() {
		detail := s.mode.String()
		if s.units > 1 {
			detail = fmt.Sprintf("%s · %d units", detail, s.units)
		}
		if !s.started.IsZero() {
			detail += " · " + formatDuration(now.Sub(s.started))
		}
		status += statusDetailStyle(" " + detail)
	}
	return status
}

// DetailedStatus returns the error line, if any, fitted to width.
func (s *StatusDisplay) DetailedStatus(width int) string {
	if s.errorMessage == "" {
		return ""
	}
	line := truncate.StringWithTail(s.errorMessage, uint(max(width-2, 1)), ellipsis) //nolint:gosec
	return errorStyle(line)
}

func (s *StatusDisplay) stateLabel() string {
	switch s.state {
	case tts.StatePlaying:
		return "Playing"
	case tts.StatePaused:
		return "Paused"
	default:
		return "Idle"
	}
}

func (s *StatusDisplay) stateColor() lipgloss.TerminalColor {
	switch s.state {
	case tts.StatePlaying:
		return green
	case tts.StatePaused:
		return yellow
	default:
		return gray
	}
}

func (s *StatusDisplay) stateIcon() string {
	switch s.state {
	case tts.StatePlaying:
		return "▶"
	case tts.StatePaused:
		return "⏸"
	default:
		return "■"
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// IsActive reports whether a session is playing or paused.
func (s *StatusDisplay) IsActive() bool {
	return s.state != tts.StateIdle
}

// Reset returns the display to idle.
func (s *StatusDisplay) Reset() {
	*s = StatusDisplay{state: tts.StateIdle}
}
