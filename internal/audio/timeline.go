package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

type scheduled struct {
	start int64
	buf   *Buffer
}

func (s scheduled) end() int64 {
	return s.start + int64(s.buf.Frames())
}

// timeline mixes scheduled buffers into a continuous sample stream. The
// position only moves when samples are rendered, so whoever pulls from the
// timeline owns its clock. Silence is rendered where nothing is scheduled.
type timeline struct {
	mu      sync.Mutex
	format  Format
	pos     int64
	pending []scheduled
	volume  float64
	closed  bool
	scratch []float32
}

func newTimeline(f Format) *timeline {
	return &timeline{format: f, volume: 1}
}

func (t *timeline) now() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos
}

// end returns the frame at which the last scheduled buffer finishes, or the
// current position if nothing is pending.
func (t *timeline) end() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	end := t.pos
	for _, s := range t.pending {
		end = max(end, s.end())
	}
	return end
}

func (t *timeline) schedule(buf *Buffer, at int64) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, tts.ErrDeviceClosed
	}
	if len(buf.Channels) != t.format.Channels {
		return 0, &tts.PlaybackError{
			Op:  "schedule",
			Err: fmt.Errorf("buffer has %d channels, device has %d", len(buf.Channels), t.format.Channels),
		}
	}

	at = max(at, t.pos)
	if buf.Frames() == 0 {
		return at, nil
	}

	t.pending = append(t.pending, scheduled{start: at, buf: buf})
	sort.SliceStable(t.pending, func(i, j int) bool {
		return t.pending[i].start < t.pending[j].start
	})
	return at, nil
}

func (t *timeline) setVolume(v float64) {
	t.mu.Lock()
	t.volume = min(max(v, 0), 1)
	t.mu.Unlock()
}

// render mixes the next frames into out, which must hold frames*channels
// interleaved samples, and advances the position.
func (t *timeline) render(out []float32, frames int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(out)
	channels := t.format.Channels
	from, to := t.pos, t.pos+int64(frames)

	kept := t.pending[:0]
	for _, s := range t.pending {
		if s.start >= to {
			kept = append(kept, s)
			continue
		}
		lo, hi := max(s.start, from), min(s.end(), to)
		for f := lo; f < hi; f++ {
			i := int(f-from) * channels
			src := int(f - s.start)
			for ch := 0; ch < channels; ch++ {
				out[i+ch] += s.buf.Channels[ch][src]
			}
		}
		if s.end() > to {
			kept = append(kept, s)
		}
	}
	clear(t.pending[len(kept):])
	t.pending = kept

	vol := float32(t.volume)
	for i, v := range out {
		out[i] = min(max(v*vol, -1), 1)
	}
	t.pos = to
}

// Read implements io.Reader, producing interleaved float32 little-endian
// samples for oto.
func (t *timeline) Read(p []byte) (int, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return 0, io.EOF
	}

	frameBytes := 4 * t.format.Channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	n := frames * t.format.Channels
	if cap(t.scratch) < n {
		t.scratch = make([]float32, n)
	}
	samples := t.scratch[:n]
	t.render(samples, frames)

	for i, v := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return frames * frameBytes, nil
}

// drop discards everything scheduled but not yet rendered.
func (t *timeline) drop() {
	t.mu.Lock()
	t.pending = nil
	t.mu.Unlock()
}

func (t *timeline) close() {
	t.mu.Lock()
	t.closed = true
	t.pending = nil
	t.mu.Unlock()
}

func (t *timeline) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
