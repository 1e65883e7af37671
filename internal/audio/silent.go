package audio

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// NullDevice consumes its timeline in real time without producing sound.
// It stands in for the speaker in CI and on machines without an audio
// subsystem, so playback still takes as long as the audio would.
type NullDevice struct {
	format Format
	tl     *timeline

	mu     sync.Mutex
	paused bool

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewNullDevice starts a silent real-time device.
func NewNullDevice(f Format) (Device, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	d := &NullDevice{
		format: f,
		tl:     newTimeline(f),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go d.pump()

	log.Debug("Opened silent output device", "format", f)
	return d, nil
}

// pump renders the timeline at the device sample rate.
func (d *NullDevice) pump() {
	defer close(d.done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var (
		played   time.Duration
		rendered int64
		last     = time.Now()
		scratch  []float32
	)
	for {
		select {
		case <-d.stop:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now

			d.mu.Lock()
			paused := d.paused
			d.mu.Unlock()
			if paused {
				continue
			}

			played += elapsed
			frames := int(d.format.Frames(played) - rendered)
			if frames <= 0 {
				continue
			}
			n := frames * d.format.Channels
			if cap(scratch) < n {
				scratch = make([]float32, n)
			}
			d.tl.render(scratch[:n], frames)
			rendered += int64(frames)
		}
	}
}

// Format implements Device.
func (d *NullDevice) Format() Format { return d.format }

// Now implements Device.
func (d *NullDevice) Now() int64 { return d.tl.now() }

// Schedule implements Device.
func (d *NullDevice) Schedule(buf *Buffer, at int64) (int64, error) {
	return d.tl.schedule(buf, at)
}

// Wait implements Device.
func (d *NullDevice) Wait(ctx context.Context, at int64) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if d.tl.isClosed() {
			return tts.ErrDeviceClosed
		}
		if d.tl.now() >= at {
			return nil
		}
		select {
		case <-ctx.Done():
			return &tts.CancelledError{Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// Suspend implements Device.
func (d *NullDevice) Suspend() error {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
	return nil
}

// Resume implements Device.
func (d *NullDevice) Resume() error {
	d.mu.Lock()
	d.paused = false
	d.mu.Unlock()
	return nil
}

// SetVolume implements Device.
func (d *NullDevice) SetVolume(volume float64) { d.tl.setVolume(volume) }

// Close implements Device.
func (d *NullDevice) Close() error {
	d.closeOnce.Do(func() {
		d.tl.close()
		close(d.stop)
		<-d.done
	})
	return nil
}
