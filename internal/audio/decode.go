package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// mp3Channels is the channel count go-mp3 always decodes to.
const mp3Channels = 2

// DecodeMP3 decodes an MP3 payload. It returns the samples and the stream's
// sample rate.
func DecodeMP3(data []byte) (*Buffer, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open mp3 stream: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode mp3 stream: %w", err)
	}
	return DecodePCM16(pcm, mp3Channels), dec.SampleRate(), nil
}

// Convert adapts b, sampled at fromRate, to the channel count and sample
// rate of to. Stereo folds to mono by averaging; mono is duplicated to
// stereo. Rates are converted with linear interpolation.
func Convert(b *Buffer, fromRate int, to Format) *Buffer {
	b = convertChannels(b, to.Channels)
	if fromRate == to.SampleRate || fromRate <= 0 || b.Frames() == 0 {
		return b
	}
	return resample(b, fromRate, to.SampleRate)
}

func convertChannels(b *Buffer, channels int) *Buffer {
	have := len(b.Channels)
	switch {
	case have == channels:
		return b
	case channels == 1:
		out := NewBuffer(1, b.Frames())
		for i := range out.Channels[0] {
			var sum float32
			for ch := 0; ch < have; ch++ {
				sum += b.Channels[ch][i]
			}
			out.Channels[0][i] = sum / float32(have)
		}
		return out
	default:
		out := &Buffer{Channels: make([][]float32, channels)}
		for ch := range out.Channels {
			out.Channels[ch] = b.Channels[min(ch, have-1)]
		}
		return out
	}
}

func resample(b *Buffer, fromRate, toRate int) *Buffer {
	ratio := float64(toRate) / float64(fromRate)
	inFrames := b.Frames()
	outFrames := int(float64(inFrames) * ratio)
	out := NewBuffer(len(b.Channels), outFrames)

	for i := 0; i < outFrames; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		for ch, in := range b.Channels {
			if idx >= inFrames-1 {
				out.Channels[ch][i] = in[inFrames-1]
				continue
			}
			out.Channels[ch][i] = in[idx]*(1-frac) + in[idx+1]*frac
		}
	}
	return out
}

// Chunk is one complete encoded speech payload waiting in the playback
// queue. Encoding says how Data is encoded; PCM describes Data when the
// encoding is raw PCM.
type Chunk struct {
	Data     []byte
	Encoding tts.Format
	PCM      Format

	released bool
}

// NewChunk wraps a payload.
func NewChunk(data []byte, encoding tts.Format, pcm Format) *Chunk {
	return &Chunk{Data: data, Encoding: encoding, PCM: pcm}
}

// Release drops the payload. A released chunk decodes to an error.
func (c *Chunk) Release() {
	if c != nil {
		c.Data = nil
		c.released = true
	}
}

// Released reports whether Release has been called.
func (c *Chunk) Released() bool {
	return c == nil || c.released
}

// Size returns the payload length in bytes.
func (c *Chunk) Size() int {
	if c == nil {
		return 0
	}
	return len(c.Data)
}

// Decode turns the chunk into samples in the device format.
func (c *Chunk) Decode(to Format) (*Buffer, error) {
	if c.Released() {
		return nil, &tts.PlaybackError{Op: "decode", Err: errors.New("chunk was released")}
	}
	if len(c.Data) == 0 {
		return nil, &tts.PlaybackError{Op: "decode", Err: errors.New("empty payload")}
	}

	switch c.Encoding {
	case tts.FormatMP3:
		buf, rate, err := DecodeMP3(c.Data)
		if err != nil {
			return nil, &tts.PlaybackError{Op: "decode", Err: err}
		}
		return Convert(buf, rate, to), nil

	case tts.FormatPCM:
		if err := c.PCM.Validate(); err != nil {
			return nil, &tts.PlaybackError{Op: "decode", Err: err}
		}
		return Convert(DecodePCM16(c.Data, c.PCM.Channels), c.PCM.SampleRate, to), nil

	default:
		return nil, &tts.PlaybackError{Op: "decode", Err: fmt.Errorf("unsupported encoding %q", c.Encoding)}
	}
}
