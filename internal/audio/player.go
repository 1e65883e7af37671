package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

const (
	// otoBufferSize is the amount of audio oto keeps queued ahead of the
	// speaker. It bounds how far the write head runs ahead of what is heard.
	otoBufferSize = 120 * time.Millisecond

	readyTimeout = 5 * time.Second
	pollInterval = 10 * time.Millisecond
)

// oto allows a single context per process. It is created on first use and
// every device after that opens a new player on it.
var (
	contextOnce   sync.Once
	sharedContext *oto.Context
	sharedFormat  Format
	contextErr    error
)

func otoContext(f Format) (*oto.Context, error) {
	contextOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   otoBufferSize,
		}

		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			contextErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}

		select {
		case <-ready:
		case <-time.After(readyTimeout):
			contextErr = errors.New("timed out waiting for the audio device")
			return
		}

		sharedContext, sharedFormat = ctx, f
		log.Debug("Audio context ready", "format", f)
	})

	if contextErr != nil {
		return nil, &tts.PlaybackError{Op: "open", Err: contextErr}
	}
	if f != sharedFormat {
		return nil, &tts.PlaybackError{
			Op:  "open",
			Err: fmt.Errorf("audio device is open at %s, cannot play %s", sharedFormat, f),
		}
	}
	return sharedContext, nil
}

// OtoDevice plays a timeline through an oto player. The device clock is the
// write head: the number of frames handed to oto so far.
type OtoDevice struct {
	format Format
	tl     *timeline
	player *oto.Player

	closeOnce sync.Once
	closeErr  error
}

// NewOtoDevice opens an output device on the shared oto context.
func NewOtoDevice(f Format) (Device, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	ctx, err := otoContext(f)
	if err != nil {
		return nil, err
	}

	tl := newTimeline(f)
	player := ctx.NewPlayer(tl)
	player.Play()

	log.Debug("Opened output device", "format", f)
	return &OtoDevice{format: f, tl: tl, player: player}, nil
}

// Format implements Device.
func (d *OtoDevice) Format() Format { return d.format }

// Now implements Device.
func (d *OtoDevice) Now() int64 { return d.tl.now() }

// Schedule implements Device.
func (d *OtoDevice) Schedule(buf *Buffer, at int64) (int64, error) {
	return d.tl.schedule(buf, at)
}

// audible estimates the frame currently leaving the speaker.
func (d *OtoDevice) audible() int64 {
	buffered := int64(d.player.BufferedSize() / (4 * d.format.Channels))
	return d.tl.now() - buffered
}

// Wait implements Device.
func (d *OtoDevice) Wait(ctx context.Context, at int64) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if d.tl.isClosed() {
			return tts.ErrDeviceClosed
		}
		if err := d.player.Err(); err != nil {
			return &tts.PlaybackError{Op: "play", Err: err}
		}
		if d.audible() >= at {
			return nil
		}

		select {
		case <-ctx.Done():
			return &tts.CancelledError{Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// Suspend implements Device. The clock stops while suspended.
func (d *OtoDevice) Suspend() error {
	d.player.Pause()
	return nil
}

// Resume implements Device.
func (d *OtoDevice) Resume() error {
	if d.tl.isClosed() {
		return tts.ErrDeviceClosed
	}
	d.player.Play()
	return nil
}

// SetVolume implements Device.
func (d *OtoDevice) SetVolume(volume float64) { d.tl.setVolume(volume) }

// Close stops playback and releases the player. It is safe to call more
// than once.
func (d *OtoDevice) Close() error {
	d.closeOnce.Do(func() {
		d.tl.close()
		d.player.Pause()
		if err := d.player.Close(); err != nil {
			d.closeErr = &tts.PlaybackError{Op: "close", Err: err}
		}
		log.Debug("Closed output device")
	})
	return d.closeErr
}
