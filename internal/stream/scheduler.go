// Package stream turns a live raw PCM byte stream into gapless playback on a
// clocked output device.
package stream

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// DefaultReadSize is how many bytes Run asks for per read.
const DefaultReadSize = 16 * 1024

// Scheduler decodes interleaved signed 16-bit little-endian PCM and
// schedules it back-to-back on a device. Bytes that do not complete a frame
// are carried into the next Feed. A Scheduler is used by one goroutine.
type Scheduler struct {
	dev      audio.Device
	format   audio.Format
	leftover []byte
	cursor   int64
	frames   int64
	buffers  int
	logger   *log.Logger
}

// New returns a scheduler for a stream in format playing on dev.
func New(dev audio.Device, format audio.Format) *Scheduler {
	return &Scheduler{
		dev:    dev,
		format: format,
		logger: log.WithPrefix("stream"),
	}
}

// Feed decodes every whole frame in the leftover bytes followed by chunk and
// schedules the result. The remainder, always shorter than a frame, is kept
// for the next call. An empty chunk changes nothing.
func (s *Scheduler) Feed(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	data := chunk
	if len(s.leftover) > 0 {
		data = make([]byte, 0, len(s.leftover)+len(chunk))
		data = append(data, s.leftover...)
		data = append(data, chunk...)
	}

	frameSize := s.format.FrameSize()
	usable := len(data) / frameSize * frameSize
	s.leftover = append(s.leftover[:0], data[usable:]...)
	if usable == 0 {
		return nil
	}

	buf := audio.DecodePCM16(data[:usable], s.format.Channels)
	buf = audio.Convert(buf, s.format.SampleRate, s.dev.Format())

	start, err := s.dev.Schedule(buf, max(s.dev.Now(), s.cursor))
	if err != nil {
		return err
	}
	s.cursor = start + int64(buf.Frames())
	s.frames += int64(buf.Frames())
	s.buffers++
	return nil
}

// Run reads r until end of stream, feeding every chunk. It checks ctx before
// each read and returns a *tts.CancelledError once ctx is done, scheduling
// nothing further. A trailing partial frame at end of stream is dropped.
func (s *Scheduler) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, DefaultReadSize)
	for {
		if err := ctx.Err(); err != nil {
			return &tts.CancelledError{Err: err}
		}

		n, err := r.Read(buf)
		if ctx.Err() != nil {
			return &tts.CancelledError{Err: ctx.Err()}
		}
		if n > 0 {
			if ferr := s.Feed(buf[:n]); ferr != nil {
				return ferr
			}
		}

		switch {
		case errors.Is(err, io.EOF):
			if len(s.leftover) > 0 {
				s.logger.Debug("Dropping partial frame at end of stream", "bytes", len(s.leftover))
				s.leftover = nil
			}
			s.logger.Debug("Stream ended", "buffers", s.buffers, "duration", s.format.Duration(s.frames))
			return nil
		case err != nil:
			return classifyReadError(ctx, err)
		}
	}
}

// Drain waits until everything scheduled so far has played.
func (s *Scheduler) Drain(ctx context.Context) error {
	return s.dev.Wait(ctx, s.cursor)
}

// Leftover returns the bytes carried to the next Feed.
func (s *Scheduler) Leftover() []byte { return s.leftover }

// Cursor returns the device frame at which the next buffer may start.
func (s *Scheduler) Cursor() int64 { return s.cursor }

// Scheduled returns the number of frames scheduled so far.
func (s *Scheduler) Scheduled() int64 { return s.frames }

func classifyReadError(ctx context.Context, err error) error {
	var (
		cancelled *tts.CancelledError
		httpErr   *tts.HTTPError
		netErr    *tts.NetworkError
	)
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return &tts.CancelledError{Err: err}
	case errors.As(err, &cancelled), errors.As(err, &httpErr), errors.As(err, &netErr):
		return err
	default:
		return &tts.NetworkError{Err: err}
	}
}
