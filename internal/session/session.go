// Package session runs text-to-speech sessions: it owns the active output
// device, chunk queue and cancellation token, and tears them down whenever a
// session stops or is superseded.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/queue"
	"github.com/dgnsrekt/readaloud/internal/stream"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// Session is one text-to-speech invocation. Only the coordinator loop
// touches its fields.
type Session struct {
	ID      uuid.UUID
	Mode    tts.Mode
	Units   int
	Started time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// queued and single-shot playback
	queue  *queue.Queue
	player *audio.TrackPlayer

	// streaming playback
	device audio.Device
	sched  *stream.Scheduler
}

func newSession(parent context.Context, mode tts.Mode) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:      uuid.New(),
		Mode:    mode,
		Started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Info is a read-only view of the active session.
type Info struct {
	ID      uuid.UUID
	Mode    tts.Mode
	Units   int
	Queued  int
	Started time.Time
}

func (s *Session) info() Info {
	in := Info{ID: s.ID, Mode: s.Mode, Units: s.Units, Started: s.Started}
	if s.queue != nil {
		in.Queued = s.queue.Len()
	}
	return in
}

// release cancels the session and frees everything it holds. It is safe to
// call more than once.
func (s *Session) release() {
	s.cancel()

	if s.queue != nil {
		s.queue.Stop()
	}
	if s.player != nil {
		s.player.Halt()
	}
	if s.device != nil {
		if err := s.device.Close(); err != nil && !errors.Is(err, tts.ErrDeviceClosed) {
			log.Warn("Failed to release output device", "session", s.ID, "error", err)
		}
	}
}

func (s *Session) pause() {
	switch {
	case s.device != nil:
		if err := s.device.Suspend(); err != nil {
			log.Warn("Failed to suspend output device", "session", s.ID, "error", err)
		}
	case s.queue != nil:
		s.queue.Pause()
	}
}

func (s *Session) resume() {
	switch {
	case s.device != nil:
		if err := s.device.Resume(); err != nil {
			log.Warn("Failed to resume output device", "session", s.ID, "error", err)
		}
	case s.queue != nil:
		s.queue.Resume()
	}
}

func (s *Session) setVolume(volume float64) {
	if s.player != nil {
		s.player.SetVolume(volume)
	}
	if s.device != nil {
		s.device.SetVolume(volume)
	}
}
