package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/export"
	"github.com/dgnsrekt/readaloud/internal/queue"
	"github.com/dgnsrekt/readaloud/internal/segment"
	"github.com/dgnsrekt/readaloud/internal/speech"
	"github.com/dgnsrekt/readaloud/internal/stream"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("coordinator is already running")

const eventBuffer = 64

// Synthesizer is the speech endpoint as seen by the coordinator.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice tts.Voice, format tts.Format) (*speech.Response, error)
	FetchFormat(ctx context.Context, text string, voice tts.Voice, format tts.Format) ([]byte, error)
}

// Coordinator owns the one active session. All session state lives on the
// goroutine running Run; the exported methods send it commands and wait for
// them to be applied. Fetches, track playback and the streaming read loop
// report back as events tagged with their session, and events from a
// session that is no longer active are dropped.
type Coordinator struct {
	connect   Connector
	open      audio.DeviceFactory
	notifier  tts.Notifier
	sink      tts.DownloadSink
	listeners []func(from, to tts.TransportState)
	logger    *log.Logger

	cmds    chan func()
	events  chan event
	done    chan struct{}
	running atomic.Bool
	state   atomic.Int32

	// owned by the loop
	ctx      context.Context
	settings config.Settings
	synth    Synthesizer
	sm       *tts.StateMachine
	active   *Session
	waiters  []chan struct{}
}

// New returns a coordinator for settings. connect is called now and again
// whenever UpdateSettings changes how the endpoint is reached.
func New(settings config.Settings, connect Connector, opts ...Option) (*Coordinator, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	synth, err := connect(settings)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		connect:  connect,
		open:     audio.NewOtoDevice,
		notifier: tts.NopNotifier{},
		logger:   log.WithPrefix("session"),
		cmds:     make(chan func()),
		events:   make(chan event, eventBuffer),
		done:     make(chan struct{}),
		settings: settings,
		synth:    synth,
		sm:       tts.NewStateMachine(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.sm.OnTransition(func(from, to tts.TransportState) {
		c.state.Store(int32(to))
		c.logger.Debug("Transport state", "from", from, "to", to)
		for _, fn := range c.listeners {
			fn(from, to)
		}
	})
	return c, nil
}

// Run drives the coordinator until ctx is done, then stops the active
// session. Every other method blocks until Run is running.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)

	c.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			c.stop()
			return nil
		case fn := <-c.cmds:
			fn()
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// do runs fn on the loop and waits for it to finish.
func (c *Coordinator) do(ctx context.Context, fn func()) error {
	reply := make(chan struct{})
	select {
	case c.cmds <- func() { fn(); close(reply) }:
	case <-c.done:
		return tts.ErrCoordinatorClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-reply:
		return nil
	case <-c.done:
		select {
		case <-reply:
			return nil
		default:
			return tts.ErrCoordinatorClosed
		}
	}
}

// post delivers ev to the loop, or drops it once the loop has exited.
func (c *Coordinator) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
		ev.discard()
	}
}

// Start tears down the active session, if any, and starts speaking text in
// mode. ctx bounds only the wait for the command; the session itself lives
// until it completes or is stopped.
func (c *Coordinator) Start(ctx context.Context, text string, mode tts.Mode) error {
	var err error
	if derr := c.do(ctx, func() { err = c.start(text, mode) }); derr != nil {
		return derr
	}
	return err
}

// Stop ends the active session and releases everything it holds. Stopping
// when nothing is active does nothing.
func (c *Coordinator) Stop() error {
	return c.do(context.Background(), c.stop)
}

// Pause suspends playback. It does nothing unless the state is playing.
func (c *Coordinator) Pause() error {
	return c.do(context.Background(), c.pause)
}

// Resume continues playback. It does nothing unless the state is paused.
func (c *Coordinator) Resume() error {
	return c.do(context.Background(), c.resume)
}

// Toggle pauses when playing and resumes when paused.
func (c *Coordinator) Toggle() error {
	return c.do(context.Background(), func() {
		switch c.sm.Current() {
		case tts.StatePlaying:
			c.pause()
		case tts.StatePaused:
			c.resume()
		}
	})
}

// State returns the current transport state. It never blocks.
func (c *Coordinator) State() tts.TransportState {
	return tts.TransportState(c.state.Load())
}

// Active returns the active session, if any.
func (c *Coordinator) Active() (Info, bool) {
	var (
		in Info
		ok bool
	)
	_ = c.do(context.Background(), func() {
		if c.active != nil {
			in, ok = c.active.info(), true
		}
	})
	return in, ok
}

// Settings returns the settings the next session will use.
func (c *Coordinator) Settings() config.Settings {
	var s config.Settings
	_ = c.do(context.Background(), func() { s = c.settings })
	return s
}

// UpdateSettings applies s to later sessions and its volume to the active
// one. Invalid settings are rejected.
func (c *Coordinator) UpdateSettings(s config.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	var err error
	if derr := c.do(context.Background(), func() { err = c.updateSettings(s) }); derr != nil {
		return derr
	}
	return err
}

// WaitIdle blocks until the session active when it is called has ended.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	var wait chan struct{}
	err := c.do(ctx, func() {
		if c.active != nil {
			wait = make(chan struct{})
			c.waiters = append(c.waiters, wait)
		}
	})
	if err != nil || wait == nil {
		return err
	}

	select {
	case <-wait:
		return nil
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) start(text string, mode tts.Mode) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return tts.ErrEmptyText
	}
	if mode == tts.ModeExport && c.sink == nil {
		return &tts.ValidationError{Field: "mode", Reason: "export needs an output location"}
	}

	units := []string{text}
	if mode == tts.ModeQueue {
		units = segment.Split(text, c.settings.SegmentThreshold)
		if len(units) == 0 {
			return tts.ErrEmptyText
		}
	}

	// The previous session is fully released before anything new is opened.
	c.stop()

	sess := newSession(c.ctx, mode)
	c.active = sess
	c.logger.Info("Session started", "session", sess.ID, "mode", mode, "chars", utf8.RuneCountInString(text), "units", len(units))

	switch mode {
	case tts.ModeStream:
		if err := c.startStream(sess, text); err != nil {
			c.report(err, "session", sess.ID)
			c.finish(sess)
			return err
		}
	case tts.ModeExport:
		c.startExport(sess, text)
		return nil
	default:
		c.startQueue(sess, units)
	}

	c.sm.Transition(tts.StatePlaying)
	return nil
}

func (c *Coordinator) startQueue(sess *Session, units []string) {
	format := c.settings.AudioFormat()
	encoding := c.settings.EncodedFormat()
	voice := c.settings.SpeechVoice()
	synth := c.synth
	limit := c.settings.Prefetch

	sess.Units = len(units)
	sess.player = audio.NewTrackPlayer(c.open, format, c.settings.Volume, func(done audio.Completion) {
		c.post(event{session: sess.ID, kind: eventTrackDone, track: done.ID, err: done.Err})
	})
	sess.queue = queue.New(sess.player, queue.Hooks{
		OnError: func(id uint64, err error) {
			c.report(err, "session", sess.ID, "unit", id)
		},
		OnDrained: func() { c.finish(sess) },
	})

	// Positions are fixed here, before any request is sent.
	slots := make([]*queue.Slot, len(units))
	for i := range units {
		slots[i] = sess.queue.Reserve()
	}

	go func() {
		g := new(errgroup.Group)
		g.SetLimit(limit)
		for i, unit := range units {
			if sess.ctx.Err() != nil {
				break
			}
			slot := slots[i]
			g.Go(func() error {
				data, err := synth.FetchFormat(sess.ctx, unit, voice, encoding)
				ev := event{session: sess.ID, kind: eventFetched, slot: slot, err: err}
				if err == nil {
					ev.chunk = audio.NewChunk(data, encoding, format)
				}
				c.post(ev)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (c *Coordinator) startStream(sess *Session, text string) error {
	format := c.settings.AudioFormat()
	dev, err := c.open(format)
	if err != nil {
		return err
	}
	dev.SetVolume(c.settings.Volume)

	sess.Units = 1
	sess.device = dev
	sess.sched = stream.New(dev, format)

	synth, voice, sched := c.synth, c.settings.SpeechVoice(), sess.sched
	go func() {
		err := runStream(sess.ctx, synth, text, voice, sched)
		c.post(event{session: sess.ID, kind: eventStreamDone, err: err})
	}()
	return nil
}

// runStream plays one streamed response to the end.
func runStream(ctx context.Context, synth Synthesizer, text string, voice tts.Voice, sched *stream.Scheduler) error {
	resp, err := synth.Synthesize(ctx, text, voice, tts.FormatPCM)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	err = sched.Run(ctx, resp.Body)
	if err == nil {
		err = sched.Drain(ctx)
	}
	if err != nil && ctx.Err() != nil {
		return &tts.CancelledError{Err: err}
	}
	return err
}

func (c *Coordinator) startExport(sess *Session, text string) {
	encoding := c.settings.EncodedFormat()
	voice := c.settings.SpeechVoice()
	synth, sink := c.synth, c.sink
	sess.Units = 1

	go func() {
		ev := event{session: sess.ID, kind: eventExported}
		data, err := synth.FetchFormat(sess.ctx, text, voice, encoding)
		if err == nil {
			ev.path, err = sink.Save(sess.ctx, data, export.SuggestName(text, time.Now(), encoding))
		}
		ev.err = err
		c.post(ev)
	}()
}

func (c *Coordinator) handle(ev event) {
	sess := c.active
	if sess == nil || sess.ID != ev.session {
		c.logger.Debug("Dropping stale event", "session", ev.session, "kind", ev.kind)
		ev.discard()
		return
	}

	switch ev.kind {
	case eventFetched:
		if ev.err != nil {
			sess.queue.Fail(ev.slot, ev.err)
			return
		}
		sess.queue.Fill(ev.slot, ev.chunk)

	case eventTrackDone:
		sess.queue.Finished(ev.track, ev.err)

	case eventStreamDone:
		c.report(ev.err, "session", sess.ID)
		c.finish(sess)

	case eventExported:
		if ev.err == nil {
			c.notifier.Notify("Saved audio to "+ev.path, tts.SeverityInfo, tts.DefaultNotifyDuration)
		} else {
			c.report(ev.err, "session", sess.ID)
		}
		c.finish(sess)
	}
}

// finish ends sess after it completed on its own.
func (c *Coordinator) finish(sess *Session) {
	if c.active != sess {
		return
	}
	sess.release()
	c.active = nil
	c.sm.Transition(tts.StateIdle)
	c.logger.Info("Session finished", "session", sess.ID, "elapsed", time.Since(sess.Started).Round(time.Millisecond))
	c.wake()
}

func (c *Coordinator) stop() {
	if sess := c.active; sess != nil {
		sess.release()
		c.active = nil
		c.logger.Info("Session stopped", "session", sess.ID)
	}
	c.sm.Transition(tts.StateIdle)
	c.wake()
}

func (c *Coordinator) pause() {
	if c.sm.Current() != tts.StatePlaying || c.active == nil {
		return
	}
	c.active.pause()
	c.sm.Transition(tts.StatePaused)
}

func (c *Coordinator) resume() {
	if c.sm.Current() != tts.StatePaused || c.active == nil {
		return
	}
	c.active.resume()
	c.sm.Transition(tts.StatePlaying)
}

func (c *Coordinator) updateSettings(s config.Settings) error {
	old := c.settings
	if s.Endpoint != old.Endpoint || s.AuthKey != old.AuthKey ||
		s.RequestsPerMinute != old.RequestsPerMinute || s.Timeout != old.Timeout {
		synth, err := c.connect(s)
		if err != nil {
			return err
		}
		c.synth = synth
		c.logger.Debug("Reconnected speech client", "endpoint", s.Endpoint)
	}

	c.settings = s
	if c.active != nil && s.Volume != old.Volume {
		c.active.setVolume(s.Volume)
	}
	return nil
}

func (c *Coordinator) wake() {
	for _, w := range c.waiters {
		close(w)
	}
	c.waiters = nil
}

// report logs err and shows the user a short message. Cancellation is the
// expected result of stopping and is never reported.
func (c *Coordinator) report(err error, keyvals ...any) {
	if err == nil || tts.IsCancelled(err) {
		return
	}
	c.logger.Error("Playback failed", append(keyvals, "error", err)...)
	c.notifier.Notify(tts.UserMessage(err), tts.SeverityError, tts.DefaultNotifyDuration)
}
