package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

var mono24k = Format{SampleRate: 24000, Channels: 1}

func pcm16(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func TestFormat(t *testing.T) {
	f := Format{SampleRate: 48000, Channels: 2}
	if f.FrameSize() != 4 {
		t.Errorf("FrameSize() = %d, want 4", f.FrameSize())
	}
	if d := f.Duration(24000); d != 500*time.Millisecond {
		t.Errorf("Duration(24000) = %v", d)
	}
	if n := f.Frames(time.Second); n != 48000 {
		t.Errorf("Frames(1s) = %d", n)
	}
}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{"mono 24k", mono24k, false},
		{"stereo 48k", Format{48000, 2}, false},
		{"zero rate", Format{0, 1}, true},
		{"three channels", Format{24000, 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			var verr *tts.ValidationError
			if err != nil && !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}

func TestDecodePCM16(t *testing.T) {
	data := pcm16(0, 16384, -32768, 32767, -1)
	buf := DecodePCM16(data, 1)

	want := []float32{0, 0.5, -1, 32767.0 / 32768, -1.0 / 32768}
	if buf.Frames() != len(want) {
		t.Fatalf("Frames() = %d, want %d", buf.Frames(), len(want))
	}
	for i, w := range want {
		if buf.Channels[0][i] != w {
			t.Errorf("sample %d = %v, want %v", i, buf.Channels[0][i], w)
		}
	}
}

func TestDecodePCM16Stereo(t *testing.T) {
	// Two frames plus one stray byte.
	data := append(pcm16(100, -100, 200, -200), 0x7f)
	buf := DecodePCM16(data, 2)

	if buf.Frames() != 2 {
		t.Fatalf("Frames() = %d, want 2", buf.Frames())
	}
	if buf.Channels[0][1] != 200.0/32768 || buf.Channels[1][1] != -200.0/32768 {
		t.Errorf("channels not deinterleaved: %v", buf.Channels)
	}
}

func TestConvert(t *testing.T) {
	stereo := &Buffer{Channels: [][]float32{{0.5, 1}, {-0.5, 0}}}

	mono := Convert(stereo, 24000, mono24k)
	if len(mono.Channels) != 1 || mono.Channels[0][0] != 0 || mono.Channels[0][1] != 0.5 {
		t.Errorf("stereo fold = %v", mono.Channels)
	}

	dup := Convert(&Buffer{Channels: [][]float32{{0.25}}}, 24000, Format{24000, 2})
	if len(dup.Channels) != 2 || dup.Channels[1][0] != 0.25 {
		t.Errorf("mono duplicate = %v", dup.Channels)
	}

	up := Convert(&Buffer{Channels: [][]float32{{0, 1, 0, 1}}}, 12000, mono24k)
	if up.Frames() != 8 {
		t.Fatalf("upsampled frames = %d, want 8", up.Frames())
	}
	if up.Channels[0][1] != 0.5 {
		t.Errorf("interpolated sample = %v, want 0.5", up.Channels[0][1])
	}

	down := Convert(NewBuffer(1, 48000), 48000, mono24k)
	if down.Frames() != 24000 {
		t.Errorf("downsampled frames = %d, want 24000", down.Frames())
	}
}

func TestChunkDecode(t *testing.T) {
	c := NewChunk(pcm16(1000, 2000, 3000), tts.FormatPCM, mono24k)
	buf, err := c.Decode(mono24k)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if buf.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", buf.Frames())
	}

	c.Release()
	if !c.Released() || c.Size() != 0 {
		t.Error("chunk not released")
	}
	if _, err := c.Decode(mono24k); err == nil {
		t.Error("released chunk decoded")
	}

	for _, data := range [][]byte{nil, {}} {
		empty := NewChunk(data, tts.FormatPCM, mono24k)
		if empty.Released() {
			t.Errorf("empty payload %v reported as released", data)
		}
		_, err := empty.Decode(mono24k)
		var perr *tts.PlaybackError
		if !errors.As(err, &perr) || !strings.Contains(perr.Err.Error(), "empty payload") {
			t.Errorf("Decode(%v) error = %v, want empty payload", data, err)
		}
	}

	bad := NewChunk([]byte("not an mp3"), tts.FormatMP3, Format{})
	_, err = bad.Decode(mono24k)
	var perr *tts.PlaybackError
	if !errors.As(err, &perr) || perr.Op != "decode" {
		t.Errorf("expected decode PlaybackError, got %v", err)
	}
}

func TestTimelineMixesAndClamps(t *testing.T) {
	tl := newTimeline(mono24k)

	a := &Buffer{Channels: [][]float32{{0.25, 0.25, 0.25}}}
	b := &Buffer{Channels: [][]float32{{0.5, 0.5, 0.9}}}

	if start, _ := tl.schedule(a, 1); start != 1 {
		t.Fatalf("start = %d, want 1", start)
	}
	tl.schedule(b, 2)

	out := make([]float32, 6)
	tl.render(out, 6)
	want := []float32{0, 0.25, 0.75, 0.75, 0.9, 0}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("frame %d = %v, want %v", i, out[i], want[i])
		}
	}

	if tl.now() != 6 {
		t.Errorf("now() = %d, want 6", tl.now())
	}
	if len(tl.pending) != 0 {
		t.Errorf("finished buffers not dropped: %d", len(tl.pending))
	}

	loud := &Buffer{Channels: [][]float32{{0.8}}}
	tl.schedule(loud, 0)
	tl.schedule(loud, 0)
	tl.render(out[:1], 1)
	if out[0] != 1 {
		t.Errorf("mixed sample not clamped: %v", out[0])
	}
}

func TestTimelineSchedulesPastAtNow(t *testing.T) {
	tl := newTimeline(mono24k)
	tl.render(make([]float32, 10), 10)

	start, err := tl.schedule(NewBuffer(1, 4), 3)
	if err != nil {
		t.Fatal(err)
	}
	if start != 10 {
		t.Errorf("past schedule placed at %d, want 10", start)
	}
	if tl.end() != 14 {
		t.Errorf("end() = %d, want 14", tl.end())
	}

	if _, err := tl.schedule(NewBuffer(2, 1), 0); err == nil {
		t.Error("channel mismatch accepted")
	}

	tl.close()
	if _, err := tl.schedule(NewBuffer(1, 1), 0); !errors.Is(err, tts.ErrDeviceClosed) {
		t.Errorf("expected ErrDeviceClosed, got %v", err)
	}
}

func TestTimelineReadFloat32(t *testing.T) {
	tl := newTimeline(Format{SampleRate: 24000, Channels: 2})
	tl.setVolume(0.5)
	tl.schedule(&Buffer{Channels: [][]float32{{1}, {-1}}}, 0)

	p := make([]byte, 8*2+3)
	n, err := tl.Read(p)
	if err != nil {
		t.Fatal(err)
	}
	if n != 16 {
		t.Fatalf("Read() = %d bytes, want 16", n)
	}
	left := math.Float32frombits(binary.LittleEndian.Uint32(p[0:]))
	right := math.Float32frombits(binary.LittleEndian.Uint32(p[4:]))
	if left != 0.5 || right != -0.5 {
		t.Errorf("frame 0 = (%v, %v), want (0.5, -0.5)", left, right)
	}

	tl.close()
	if _, err := tl.Read(p); err == nil {
		t.Error("closed timeline still readable")
	}
}

func TestFakeDeviceWait(t *testing.T) {
	d := NewFakeDevice(mono24k)

	done := make(chan error, 1)
	go func() { done <- d.Wait(context.Background(), 100) }()

	d.Advance(50)
	select {
	case err := <-done:
		t.Fatalf("Wait returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	d.Advance(50)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after clock reached target")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Wait(ctx, 1000); !tts.IsCancelled(err) {
		t.Errorf("expected CancelledError, got %v", err)
	}
}

func TestFakeDeviceSuspendStopsClock(t *testing.T) {
	d := NewFakeDevice(mono24k)
	d.Instant = true

	d.Suspend()
	d.Advance(10)
	if d.Now() != 0 {
		t.Errorf("clock moved while suspended: %d", d.Now())
	}

	done := make(chan error, 1)
	go func() { done <- d.Wait(context.Background(), 10) }()

	select {
	case <-done:
		t.Fatal("Wait returned while suspended")
	case <-time.After(20 * time.Millisecond):
	}

	d.Resume()
	if err := <-done; err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if d.Now() != 10 {
		t.Errorf("Now() = %d, want 10", d.Now())
	}
}

func TestTrackPlayerCompletesOnce(t *testing.T) {
	factory := &FakeFactory{Instant: true}
	done := make(chan Completion, 4)
	p := NewTrackPlayer(factory.Open, mono24k, 0.7, func(c Completion) { done <- c })

	c := NewChunk(pcm16(1, 2, 3, 4), tts.FormatPCM, mono24k)
	if err := p.Play(7, c); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	select {
	case got := <-done:
		if got.ID != 7 || got.Err != nil {
			t.Errorf("unexpected completion %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("track never completed")
	}

	select {
	case extra := <-done:
		t.Errorf("second completion %+v", extra)
	case <-time.After(20 * time.Millisecond):
	}

	devs := factory.Devices()
	if len(devs) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devs))
	}
	if !devs[0].Closed() {
		t.Error("device not closed after completion")
	}
	if devs[0].Volume() != 0.7 {
		t.Errorf("volume = %v, want 0.7", devs[0].Volume())
	}
}

func TestTrackPlayerHaltReportsNothing(t *testing.T) {
	factory := &FakeFactory{}
	done := make(chan Completion, 1)
	p := NewTrackPlayer(factory.Open, mono24k, 1, func(c Completion) { done <- c })

	if err := p.Play(1, NewChunk(pcm16(1, 2), tts.FormatPCM, mono24k)); err != nil {
		t.Fatal(err)
	}
	p.Pause()
	dev := factory.Devices()[0]
	if !dev.Suspended() {
		t.Error("pause did not suspend the device")
	}
	p.Resume()

	p.Halt()
	p.Halt()

	if !dev.Closed() {
		t.Error("halt did not close the device")
	}
	select {
	case c := <-done:
		t.Errorf("halted track reported %+v", c)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestTrackPlayerOpenFailure(t *testing.T) {
	factory := &FakeFactory{Err: &tts.PlaybackError{Op: "open", Err: errors.New("no device")}}
	p := NewTrackPlayer(factory.Open, mono24k, 1, func(Completion) {})

	err := p.Play(1, NewChunk(pcm16(1), tts.FormatPCM, mono24k))
	var perr *tts.PlaybackError
	if !errors.As(err, &perr) {
		t.Errorf("expected PlaybackError, got %v", err)
	}
}
