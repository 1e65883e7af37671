package audio

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// BytesPerSample is the width of one signed 16-bit little-endian sample.
const BytesPerSample = 2

// Format describes interleaved PCM audio.
type Format struct {
	SampleRate int
	Channels   int
}

// FrameSize returns the number of bytes in one frame of 16-bit PCM.
func (f Format) FrameSize() int {
	return f.Channels * BytesPerSample
}

// Duration converts a frame count into wall-clock time.
func (f Format) Duration(frames int64) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Frames converts a duration into a frame count, rounding down.
func (f Format) Frames(d time.Duration) int64 {
	return int64(d) * int64(f.SampleRate) / int64(time.Second)
}

// Validate reports whether the format can be played.
func (f Format) Validate() error {
	if f.SampleRate < 8000 || f.SampleRate > 192000 {
		return &tts.ValidationError{Field: "sample_rate", Reason: fmt.Sprintf("%d Hz is outside 8000-192000", f.SampleRate)}
	}
	if f.Channels != 1 && f.Channels != 2 {
		return &tts.ValidationError{Field: "channels", Reason: fmt.Sprintf("must be 1 or 2, got %d", f.Channels)}
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
}

// Buffer holds planar float samples, one slice per channel, all of equal
// length. Values are nominally in [-1, 1).
type Buffer struct {
	Channels [][]float32
}

// NewBuffer allocates a silent buffer.
func NewBuffer(channels, frames int) *Buffer {
	b := &Buffer{Channels: make([][]float32, channels)}
	for ch := range b.Channels {
		b.Channels[ch] = make([]float32, frames)
	}
	return b
}

// Frames returns the number of frames in the buffer.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// DecodePCM16 converts interleaved signed 16-bit little-endian samples into a
// planar buffer. Only whole frames are decoded; a trailing partial frame is
// ignored.
func DecodePCM16(data []byte, channels int) *Buffer {
	frameSize := channels * BytesPerSample
	frames := len(data) / frameSize
	b := NewBuffer(channels, frames)

	for i := 0; i < frames; i++ {
		off := i * frameSize
		for ch := 0; ch < channels; ch++ {
			s := int16(binary.LittleEndian.Uint16(data[off+ch*BytesPerSample:]))
			b.Channels[ch][i] = float32(s) / 32768
		}
	}
	return b
}
