package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// StatusNotifier prints notifications as styled lines, for runs without
// the TUI.
type StatusNotifier struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *lipgloss.Renderer
}

var _ tts.Notifier = (*StatusNotifier)(nil)

// NewStatusNotifier writes to w, detecting its color support.
func NewStatusNotifier(w io.Writer, opts ...termenv.OutputOption) *StatusNotifier {
	return &StatusNotifier{w: w, renderer: lipgloss.NewRenderer(w, opts...)}
}

// Notify implements tts.Notifier. The duration is ignored; lines stay in
// the scrollback.
func (n *StatusNotifier) Notify(message string, severity tts.Severity, _ time.Duration) {
	if message == "" {
		return
	}

	var icon string
	style := n.renderer.NewStyle()
	switch severity {
	case tts.SeverityError:
		icon, style = "✗", style.Foreground(red)
	case tts.SeverityWarning:
		icon, style = "!", style.Foreground(yellow)
	default:
		icon, style = "•", style.Foreground(green)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintln(n.w, style.Render(icon+" "+message)); err != nil {
		log.Debug("Failed to write notification", "error", err)
	}
}

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

const bridgeBuffer = 64

// Bridge forwards coordinator notifications and state changes into a
// Bubble Tea program, in order and without ever blocking the caller.
// Messages sent before Attach wait in a bounded buffer; once it is full
// new messages are dropped.
type Bridge struct {
	msgs chan tea.Msg
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ tts.Notifier = (*Bridge)(nil)

// NewBridge returns a detached bridge.
func NewBridge() *Bridge {
	return &Bridge{msgs: make(chan tea.Msg, bridgeBuffer)}
}

// Attach starts delivering to s. Only the first call has an effect.
func (b *Bridge) Attach(s Sender) {
	b.once.Do(func() {
		go func() {
			for msg := range b.msgs {
				s.Send(msg)
			}
		}()
	})
}

// Close stops forwarding. Later messages are dropped.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.msgs)
	}
}

func (b *Bridge) push(msg tea.Msg) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.msgs <- msg:
	default:
		log.Debug("Dropping UI message", "msg", fmt.Sprintf("%T", msg))
	}
}

// Notify implements tts.Notifier.
func (b *Bridge) Notify(message string, severity tts.Severity, duration time.Duration) {
	b.push(NoteMsg{Message: message, Severity: severity, Duration: duration})
}

// StateChanged is a coordinator state listener.
func (b *Bridge) StateChanged(from, to tts.TransportState) {
	b.push(StateMsg{From: from, To: to})
}
