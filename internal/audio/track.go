package audio

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// Completion reports that a track finished, naturally or with an error.
type Completion struct {
	ID  uint64
	Err error
}

type track struct {
	id     uint64
	dev    Device
	cancel context.CancelFunc
}

// TrackPlayer plays one chunk at a time, each on its own device. Every
// started track reports exactly one Completion through onDone unless it is
// halted first, in which case it reports nothing.
type TrackPlayer struct {
	open   DeviceFactory
	format Format
	onDone func(Completion)

	mu     sync.Mutex
	volume float64
	active *track
}

// NewTrackPlayer returns a player that opens devices with open at format.
// onDone is called from the track's goroutine.
func NewTrackPlayer(open DeviceFactory, format Format, volume float64, onDone func(Completion)) *TrackPlayer {
	return &TrackPlayer{open: open, format: format, volume: volume, onDone: onDone}
}

// Play decodes c and starts it. Any track still playing is halted first.
func (p *TrackPlayer) Play(id uint64, c *Chunk) error {
	p.Halt()

	buf, err := c.Decode(p.format)
	if err != nil {
		return err
	}

	dev, err := p.open(p.format)
	if err != nil {
		return err
	}

	p.mu.Lock()
	dev.SetVolume(p.volume)
	p.mu.Unlock()

	start, err := dev.Schedule(buf, dev.Now())
	if err != nil {
		_ = dev.Close()
		return err
	}
	end := start + int64(buf.Frames())

	ctx, cancel := context.WithCancel(context.Background())
	t := &track{id: id, dev: dev, cancel: cancel}

	p.mu.Lock()
	p.active = t
	p.mu.Unlock()

	log.Debug("Track started", "id", id, "duration", p.format.Duration(int64(buf.Frames())))

	go func() {
		err := dev.Wait(ctx, end)
		if ctx.Err() != nil {
			return
		}
		if cerr := dev.Close(); err == nil && cerr != nil {
			err = cerr
		}

		p.mu.Lock()
		if p.active == t {
			p.active = nil
		}
		p.mu.Unlock()

		p.onDone(Completion{ID: id, Err: err})
	}()
	return nil
}

// Pause suspends the active track.
func (p *TrackPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		if err := p.active.dev.Suspend(); err != nil {
			log.Warn("Failed to suspend track", "id", p.active.id, "error", err)
		}
	}
}

// Resume continues the active track.
func (p *TrackPlayer) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		if err := p.active.dev.Resume(); err != nil {
			log.Warn("Failed to resume track", "id", p.active.id, "error", err)
		}
	}
}

// Halt stops the active track and releases its device without reporting a
// completion.
func (p *TrackPlayer) Halt() {
	p.mu.Lock()
	t := p.active
	p.active = nil
	p.mu.Unlock()

	if t == nil {
		return
	}
	t.cancel()
	if err := t.dev.Close(); err != nil && !errors.Is(err, tts.ErrDeviceClosed) {
		log.Warn("Failed to close track device", "id", t.id, "error", err)
	}
}

// SetVolume applies to the active track and every later one.
func (p *TrackPlayer) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	if p.active != nil {
		p.active.dev.SetVolume(volume)
	}
}
