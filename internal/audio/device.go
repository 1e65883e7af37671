package audio

import "context"

// Device is a clocked audio output.
//
// Now reports the device clock in frames. Schedule queues buf to start at
// frame at, or at Now if at is already in the past, and returns the frame
// at which it was actually placed. Wait blocks until playback has reached
// frame at, the context is done or the device fails.
type Device interface {
	Format() Format
	Now() int64
	Schedule(buf *Buffer, at int64) (int64, error)
	Wait(ctx context.Context, at int64) error
	Suspend() error
	Resume() error
	SetVolume(volume float64)
	Close() error
}

// DeviceFactory opens a device for the given format.
type DeviceFactory func(Format) (Device, error)
