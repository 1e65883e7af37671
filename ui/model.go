// Package ui provides the interactive control surface for readaloud.
package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/dgnsrekt/readaloud/internal/session"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

const defaultWidth = 80

// Controller is the playback surface the TUI drives.
type Controller interface {
	Start(ctx context.Context, text string, mode tts.Mode) error
	Stop() error
	Toggle() error
	State() tts.TransportState
	Active() (session.Info, bool)
}

// StateMsg reports a transport state change.
type StateMsg struct {
	From, To tts.TransportState
}

// NoteMsg is a transient notification.
type NoteMsg struct {
	Message  string
	Severity tts.Severity
	Duration time.Duration
}

type (
	errMsg             struct{ err error }
	sessionMsg         session.Info
	noteTimeoutMsg     int
	startedMsg         struct{}
	controlFinishedMsg struct{}
)

func (e errMsg) Error() string { return e.err.Error() }

type model struct {
	cfg  Config
	ctrl Controller
	text string

	width  int
	status *StatusDisplay

	spinner spinner.Model
	help    help.Model
	keys    keyMap

	note     string
	severity tts.Severity
	noteID   int

	started  bool
	quitting bool
}

func newModel(cfg Config, ctrl Controller, text string) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = sp.Style.Foreground(green)

	if cfg.PreviewLines <= 0 {
		cfg.PreviewLines = 8
	}

	return model{
		cfg:     cfg,
		ctrl:    ctrl,
		text:    text,
		width:   defaultWidth,
		status:  NewStatusDisplay(),
		spinner: sp,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Commands

func startCmd(ctrl Controller, text string, mode tts.Mode) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Start(context.Background(), text, mode); err != nil {
			return errMsg{err}
		}
		return startedMsg{}
	}
}

func toggleCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Toggle(); err != nil {
			return errMsg{err}
		}
		return controlFinishedMsg{}
	}
}

func stopCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Stop(); err != nil {
			return errMsg{err}
		}
		return controlFinishedMsg{}
	}
}

func sessionCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		info, ok := ctrl.Active()
		if !ok {
			return nil
		}
		return sessionMsg(info)
	}
}

func noteTimeoutCmd(id int, d time.Duration) tea.Cmd {
	if d <= 0 {
		d = tts.DefaultNotifyDuration
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return noteTimeoutMsg(id) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(startCmd(m.ctrl, m.text, m.cfg.Mode), m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Sequence(stopCmd(m.ctrl), tea.Quit)
		case key.Matches(msg, m.keys.Toggle):
			return m, toggleCmd(m.ctrl)
		case key.Matches(msg, m.keys.Stop):
			return m, stopCmd(m.ctrl)
		case key.Matches(msg, m.keys.Restart):
			return m, startCmd(m.ctrl, m.text, m.cfg.Mode)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		return m, nil

	case startedMsg:
		m.started = true
		return m, sessionCmd(m.ctrl)

	case sessionMsg:
		m.status.SetSession(session.Info(msg))
		return m, nil

	case StateMsg:
		log.Debug("UI state", "from", msg.From, "to", msg.To)
		m.status.SetState(msg.To)
		if msg.To == tts.StatePlaying && msg.From == tts.StateIdle {
			return m, sessionCmd(m.ctrl)
		}
		if msg.To == tts.StateIdle && m.cfg.ExitWhenDone && m.started {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case NoteMsg:
		return m.setNote(msg.Message, msg.Severity, msg.Duration)

	case errMsg:
		if tts.IsCancelled(msg.err) {
			return m, nil
		}
		m.status.SetError(msg.Error())
		return m.setNote(msg.Error(), tts.SeverityError, tts.DefaultNotifyDuration)

	case noteTimeoutMsg:
		if int(msg) == m.noteID {
			m.note = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) setNote(message string, severity tts.Severity, d time.Duration) (tea.Model, tea.Cmd) {
	if message == "" {
		return m, nil
	}
	m.noteID++
	m.note = message
	m.severity = severity
	if severity == tts.SeverityError {
		m.status.SetError(message)
	}
	return m, noteTimeoutCmd(m.noteID, d)
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := titleStyle("readaloud") + " " + m.status.CompactStatus(time.Now())
	if m.status.IsActive() && m.ctrl.State() == tts.StatePlaying {
		header += " " + m.spinner.View()
	}
	b.WriteString(header + "\n\n")

	b.WriteString(m.preview() + "\n\n")

	if m.note != "" {
		if m.severity == tts.SeverityError {
			b.WriteString(errorStyle(m.note))
		} else {
			b.WriteString(statusBarMessageStyle(m.note))
		}
		b.WriteString("\n")
	} else if detail := m.status.DetailedStatus(m.width); detail != "" {
		b.WriteString(detail + "\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// preview wraps the text to the window and keeps the first few lines.
func (m model) preview() string {
	width := max(m.width-4, 10)
	lines := strings.Split(wordwrap.String(m.text, width), "\n")

	more := len(lines) > m.cfg.PreviewLines
	if more {
		lines = lines[:m.cfg.PreviewLines]
	}
	for i, l := range lines {
		lines[i] = truncate.StringWithTail(l, uint(width), ellipsis) //nolint:gosec
	}
	if more {
		lines = append(lines, ellipsis)
	}
	return previewStyle.Render(strings.Join(lines, "\n"))
}
