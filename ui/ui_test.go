package ui

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/readaloud/internal/session"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

type fakeController struct {
	mu     sync.Mutex
	calls  []string
	state  tts.TransportState
	active *session.Info
}

func (c *fakeController) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *fakeController) Start(_ context.Context, text string, mode tts.Mode) error {
	c.record("start:" + mode.String())
	return nil
}

func (c *fakeController) Stop() error   { c.record("stop"); return nil }
func (c *fakeController) Toggle() error { c.record("toggle"); return nil }

func (c *fakeController) State() tts.TransportState { return c.state }

func (c *fakeController) Active() (session.Info, bool) {
	if c.active == nil {
		return session.Info{}, false
	}
	return *c.active, true
}

func (c *fakeController) lastCall() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		return ""
	}
	return c.calls[len(c.calls)-1]
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestKeyBindings(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want string
	}{
		{"space toggles", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, "toggle"},
		{"p toggles", runes("p"), "toggle"},
		{"s stops", runes("s"), "stop"},
		{"r restarts", runes("r"), "start:queue"},
		{"unbound key", runes("x"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{}
			m := newModel(Config{Mode: tts.ModeQueue}, ctrl, "Hello world.")

			_, cmd := m.Update(tt.key)
			if tt.want == "" {
				if cmd != nil {
					t.Error("unbound key produced a command")
				}
				return
			}
			if cmd == nil {
				t.Fatal("expected a command")
			}
			cmd()
			if got := ctrl.lastCall(); got != tt.want {
				t.Errorf("controller call = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuitStopsPlayback(t *testing.T) {
	m := newModel(Config{}, &fakeController{}, "text")

	next, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("quit produced no command")
	}
	if !next.(model).quitting {
		t.Error("model not quitting")
	}
	if next.View() != "" {
		t.Error("quitting model still renders")
	}
}

func TestHelpToggle(t *testing.T) {
	m := newModel(Config{}, &fakeController{}, "text")

	next, _ := m.Update(runes("?"))
	if !next.(model).help.ShowAll {
		t.Error("full help not shown")
	}
	next, _ = next.Update(runes("?"))
	if next.(model).help.ShowAll {
		t.Error("full help not hidden")
	}
}

func TestStateMessages(t *testing.T) {
	started := time.Now()
	ctrl := &fakeController{active: &session.Info{Mode: tts.ModeQueue, Units: 3, Started: started}}
	m := newModel(Config{Mode: tts.ModeQueue}, ctrl, "text")

	next, cmd := m.Update(StateMsg{From: tts.StateIdle, To: tts.StatePlaying})
	if cmd == nil {
		t.Fatal("no session lookup after start")
	}
	next, _ = next.Update(cmd())

	status := next.(model).status.CompactStatus(started.Add(65 * time.Second))
	for _, want := range []string{"Playing", "queue · 3 units", "1:05"} {
		if !strings.Contains(status, want) {
			t.Errorf("status %q missing %q", status, want)
		}
	}

	next, _ = next.Update(StateMsg{From: tts.StatePlaying, To: tts.StatePaused})
	if s := next.(model).status.CompactStatus(time.Now()); !strings.Contains(s, "Paused") {
		t.Errorf("status = %q", s)
	}

	next, _ = next.Update(StateMsg{From: tts.StatePaused, To: tts.StateIdle})
	if next.(model).status.IsActive() {
		t.Error("status still active after idle")
	}
}

func TestExitWhenDone(t *testing.T) {
	m := newModel(Config{ExitWhenDone: true}, &fakeController{}, "text")

	// Idle before anything started must not quit.
	if _, cmd := m.Update(StateMsg{From: tts.StatePlaying, To: tts.StateIdle}); cmd != nil {
		t.Error("quit before the session started")
	}

	next, _ := m.Update(startedMsg{})
	_, cmd := next.Update(StateMsg{From: tts.StatePlaying, To: tts.StateIdle})
	if cmd == nil {
		t.Fatal("no quit after the session ended")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("command is not tea.Quit")
	}
}

func TestNotes(t *testing.T) {
	m := newModel(Config{}, &fakeController{}, "text")

	next, cmd := m.Update(NoteMsg{Message: "Saved audio", Severity: tts.SeverityInfo, Duration: time.Second})
	if cmd == nil || next.(model).note != "Saved audio" {
		t.Fatal("note not shown")
	}
	if !strings.Contains(next.View(), "Saved audio") {
		t.Error("note missing from view")
	}

	next, _ = next.Update(NoteMsg{Message: "Second", Severity: tts.SeverityWarning})
	next, _ = next.Update(noteTimeoutMsg(1))
	if next.(model).note != "Second" {
		t.Error("stale timeout cleared the newer note")
	}
	next, _ = next.Update(noteTimeoutMsg(2))
	if next.(model).note != "" {
		t.Error("note not cleared")
	}
}

func TestErrorsShown(t *testing.T) {
	m := newModel(Config{}, &fakeController{}, "text")

	next, cmd := m.Update(errMsg{&tts.CancelledError{}})
	if cmd != nil || next.(model).note != "" {
		t.Error("cancellation shown to the user")
	}

	next, _ = m.Update(errMsg{tts.ErrEmptyText})
	if next.(model).note != tts.ErrEmptyText.Error() {
		t.Errorf("note = %q", next.(model).note)
	}

	// The error stays in the status after the note times out.
	next, _ = next.Update(noteTimeoutMsg(1))
	if !strings.Contains(next.View(), tts.ErrEmptyText.Error()) {
		t.Error("error disappeared from view")
	}
}

func TestPreviewTruncates(t *testing.T) {
	text := strings.Repeat("word ", 200)
	m := newModel(Config{PreviewLines: 2}, &fakeController{}, text)
	m.width = 30

	lines := strings.Split(m.preview(), "\n")
	if len(lines) != 3 {
		t.Fatalf("preview has %d lines, want 2 plus ellipsis", len(lines))
	}
	if !strings.Contains(lines[2], ellipsis) {
		t.Errorf("last line = %q", lines[2])
	}
}

func TestStatusNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewStatusNotifier(&buf, termenv.WithProfile(termenv.Ascii))

	n.Notify("Can't reach the speech service.", tts.SeverityError, time.Second)
	n.Notify("", tts.SeverityInfo, time.Second)
	n.Notify("Saved audio to out.mp3", tts.SeverityInfo, time.Second)

	want := "✗ Can't reach the speech service.\n• Saved audio to out.mp3\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

type chanSender chan tea.Msg

func (c chanSender) Send(msg tea.Msg) { c <- msg }

func TestBridgeForwardsInOrder(t *testing.T) {
	b := NewBridge()
	b.Notify("sent before attach", tts.SeverityInfo, 0)

	out := make(chanSender, 8)
	b.Attach(out)

	b.StateChanged(tts.StateIdle, tts.StatePlaying)
	b.Notify("hello", tts.SeverityWarning, time.Second)

	var got []tea.Msg
	for len(got) < 3 {
		select {
		case msg := <-out:
			got = append(got, msg)
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d messages", len(got))
		}
	}

	if n, ok := got[0].(NoteMsg); !ok || n.Message != "sent before attach" {
		t.Errorf("first message = %#v", got[0])
	}
	if s, ok := got[1].(StateMsg); !ok || s.To != tts.StatePlaying {
		t.Errorf("second message = %#v", got[1])
	}
	if n, ok := got[2].(NoteMsg); !ok || n.Message != "hello" {
		t.Errorf("third message = %#v", got[2])
	}

	b.Close()
	b.Notify("after close", tts.SeverityInfo, 0)
}
