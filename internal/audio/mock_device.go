package audio

import (
	"context"
	"sync"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// Scheduled records one call to FakeDevice.Schedule.
type Scheduled struct {
	Requested int64
	Start     int64
	Frames    int
}

// FakeDevice is a Device driven by a manual clock for tests. The clock only
// moves when Advance is called, or, with Instant set, when a caller waits
// for a frame that has not been reached yet.
type FakeDevice struct {
	// Instant makes Wait advance the clock to its target instead of blocking.
	Instant bool

	format Format
	tl     *timeline

	mu        sync.Mutex
	wake      chan struct{}
	schedules []Scheduled
	output    []float32
	suspended bool
	closed    bool
	suspends  int
	resumes   int
	volume    float64
}

// NewFakeDevice returns a fake device at frame zero.
func NewFakeDevice(f Format) *FakeDevice {
	return &FakeDevice{
		format: f,
		tl:     newTimeline(f),
		wake:   make(chan struct{}),
		volume: 1,
	}
}

// Format implements Device.
func (d *FakeDevice) Format() Format { return d.format }

// Now implements Device.
func (d *FakeDevice) Now() int64 { return d.tl.now() }

// Schedule implements Device.
func (d *FakeDevice) Schedule(buf *Buffer, at int64) (int64, error) {
	start, err := d.tl.schedule(buf, at)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	d.schedules = append(d.schedules, Scheduled{Requested: at, Start: start, Frames: buf.Frames()})
	d.mu.Unlock()
	return start, nil
}

// Advance renders frames of output and moves the clock forward. It does
// nothing while the device is suspended or closed.
func (d *FakeDevice) Advance(frames int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advanceLocked(frames)
}

func (d *FakeDevice) advanceLocked(frames int) {
	if d.suspended || d.closed || frames <= 0 {
		return
	}
	out := make([]float32, frames*d.format.Channels)
	d.tl.render(out, frames)
	d.output = append(d.output, out...)
	d.broadcastLocked()
}

func (d *FakeDevice) broadcastLocked() {
	close(d.wake)
	d.wake = make(chan struct{})
}

// Wait implements Device.
func (d *FakeDevice) Wait(ctx context.Context, at int64) error {
	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return tts.ErrDeviceClosed
		}
		now := d.tl.now()
		if now >= at {
			d.mu.Unlock()
			return nil
		}
		if d.Instant && !d.suspended {
			d.advanceLocked(int(at - now))
			d.mu.Unlock()
			continue
		}
		wake := d.wake
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return &tts.CancelledError{Err: ctx.Err()}
		case <-wake:
		}
	}
}

// Suspend implements Device.
func (d *FakeDevice) Suspend() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspended = true
	d.suspends++
	return nil
}

// Resume implements Device.
func (d *FakeDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return tts.ErrDeviceClosed
	}
	d.suspended = false
	d.resumes++
	d.broadcastLocked()
	return nil
}

// SetVolume implements Device.
func (d *FakeDevice) SetVolume(volume float64) {
	d.tl.setVolume(volume)
	d.mu.Lock()
	d.volume = volume
	d.mu.Unlock()
}

// Close implements Device.
func (d *FakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.tl.close()
	d.broadcastLocked()
	return nil
}

// Schedules returns every schedule call made so far.
func (d *FakeDevice) Schedules() []Scheduled {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Scheduled(nil), d.schedules...)
}

// Output returns the interleaved samples rendered so far.
func (d *FakeDevice) Output() []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]float32(nil), d.output...)
}

// Closed reports whether Close has been called.
func (d *FakeDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Suspended reports whether the device is currently suspended.
func (d *FakeDevice) Suspended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspended
}

// Volume returns the last volume set.
func (d *FakeDevice) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

// Counts returns how many times the device was suspended and resumed.
func (d *FakeDevice) Counts() (suspends, resumes int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspends, d.resumes
}

// FakeFactory opens FakeDevices and remembers them.
type FakeFactory struct {
	// Instant is copied to every device opened.
	Instant bool
	// Err, when set, is returned instead of opening a device.
	Err error

	mu      sync.Mutex
	devices []*FakeDevice
}

// Open is a DeviceFactory.
func (f *FakeFactory) Open(format Format) (Device, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	d := NewFakeDevice(format)
	d.Instant = f.Instant

	f.mu.Lock()
	f.devices = append(f.devices, d)
	f.mu.Unlock()
	return d, nil
}

// Devices returns every device opened so far.
func (f *FakeFactory) Devices() []*FakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeDevice(nil), f.devices...)
}
