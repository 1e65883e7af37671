package queue

import (
	"errors"
	"slices"
	"testing"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// fakePlayer records calls and lets tests decide when items finish.
type fakePlayer struct {
	played  []uint64
	chunks  []*audio.Chunk
	pauses  int
	resumes int
	halts   int
	failOn  map[uint64]error
}

func (p *fakePlayer) Play(id uint64, c *audio.Chunk) error {
	if err := p.failOn[id]; err != nil {
		return err
	}
	p.played = append(p.played, id)
	p.chunks = append(p.chunks, c)
	return nil
}

func (p *fakePlayer) Pause()  { p.pauses++ }
func (p *fakePlayer) Resume() { p.resumes++ }
func (p *fakePlayer) Halt()   { p.halts++ }

func chunk(s string) *audio.Chunk {
	return audio.NewChunk([]byte(s), tts.FormatMP3, audio.Format{})
}

type recorder struct {
	errs    map[uint64]error
	drained int
	started []uint64
}

func (r *recorder) hooks() Hooks {
	r.errs = map[uint64]error{}
	return Hooks{
		OnStart:   func(id uint64) { r.started = append(r.started, id) },
		OnError:   func(id uint64, err error) { r.errs[id] = err },
		OnDrained: func() { r.drained++ },
	}
}

func TestQueue_EnqueuePlaysImmediately(t *testing.T) {
	p := &fakePlayer{}
	var r recorder
	q := New(p, r.hooks())

	id, err := q.Enqueue(chunk("a"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if got, ok := q.Playing(); !ok || got != id {
		t.Fatalf("expected item %d playing, got %d (%v)", id, got, ok)
	}
	if q.Len() != 0 {
		t.Errorf("expected empty backlog, got %d", q.Len())
	}

	q.Enqueue(chunk("b"))
	if len(p.played) != 1 {
		t.Errorf("second item started while first playing: %v", p.played)
	}
	if q.Len() != 1 {
		t.Errorf("expected one waiting item, got %d", q.Len())
	}
}

func TestQueue_PlaysInReservationOrder(t *testing.T) {
	p := &fakePlayer{}
	var r recorder
	q := New(p, r.hooks())

	first, second, third := q.Reserve(), q.Reserve(), q.Reserve()

	// Responses arrive out of order.
	q.Fill(third, chunk("3"))
	q.Fill(second, chunk("2"))
	if len(p.played) != 0 {
		t.Fatalf("played before head was filled: %v", p.played)
	}

	q.Fill(first, chunk("1"))
	for _, s := range []*Slot{first, second, third} {
		if !q.Finished(s.ID(), nil) {
			t.Fatalf("Finished(%d) rejected", s.ID())
		}
	}

	want := []uint64{first.ID(), second.ID(), third.ID()}
	if !slices.Equal(p.played, want) {
		t.Errorf("played %v, want %v", p.played, want)
	}
	if r.drained != 1 {
		t.Errorf("expected drained once, got %d", r.drained)
	}
	for i, c := range p.chunks {
		if !c.Released() {
			t.Errorf("chunk %d not released after playback", i)
		}
	}
}

func TestQueue_FailedItemsAreSkipped(t *testing.T) {
	boom := errors.New("boom")
	p := &fakePlayer{failOn: map[uint64]error{}}
	var r recorder
	q := New(p, r.hooks())

	a, b, c, d := q.Reserve(), q.Reserve(), q.Reserve(), q.Reserve()
	p.failOn[c.ID()] = &tts.PlaybackError{Op: "decode", Err: boom}

	q.Fail(a, &tts.HTTPError{Status: 500})
	q.Fill(b, chunk("b"))
	q.Fill(c, chunk("c"))
	q.Fill(d, chunk("d"))

	q.Finished(b.ID(), nil)
	q.Finished(d.ID(), errors.New("device lost"))

	if !slices.Equal(p.played, []uint64{b.ID(), d.ID()}) {
		t.Errorf("played %v", p.played)
	}
	for _, s := range []*Slot{a, c, d} {
		if r.errs[s.ID()] == nil {
			t.Errorf("expected error reported for item %d", s.ID())
		}
	}
	if r.drained != 1 {
		t.Errorf("expected drained once, got %d", r.drained)
	}
	if st := q.Stats(); st.TotalPlayed != 1 || st.TotalFailed != 3 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestQueue_StaleCompletionIgnored(t *testing.T) {
	p := &fakePlayer{}
	var r recorder
	q := New(p, r.hooks())

	id, _ := q.Enqueue(chunk("a"))
	q.Enqueue(chunk("b"))

	if q.Finished(id+10, nil) {
		t.Error("completion for unknown item accepted")
	}
	if !q.Finished(id, nil) {
		t.Fatal("completion for current item rejected")
	}
	if q.Finished(id, nil) {
		t.Error("second completion for the same item accepted")
	}
	if len(p.played) != 2 {
		t.Errorf("expected 2 plays, got %v", p.played)
	}
}

func TestQueue_PauseWithholdsDequeue(t *testing.T) {
	p := &fakePlayer{}
	var r recorder
	q := New(p, r.hooks())

	first, _ := q.Enqueue(chunk("a"))
	q.Enqueue(chunk("b"))

	q.Pause()
	q.Pause()
	if p.pauses != 1 {
		t.Errorf("expected 1 pause, got %d", p.pauses)
	}

	q.Finished(first, nil)
	if _, ok := q.Playing(); ok {
		t.Fatal("next item started while paused")
	}
	if len(p.played) != 1 {
		t.Fatalf("played %v while paused", p.played)
	}

	q.Resume()
	if len(p.played) != 2 {
		t.Errorf("resume did not start next item: %v", p.played)
	}
	if p.resumes != 0 {
		t.Errorf("resume forwarded with nothing paused on the player: %d", p.resumes)
	}

	q.Resume()
	if len(p.played) != 2 {
		t.Error("second resume changed playback")
	}
}

func TestQueue_PauseResumeActiveItem(t *testing.T) {
	p := &fakePlayer{}
	var r recorder
	q := New(p, r.hooks())

	q.Resume()
	if p.resumes != 0 {
		t.Error("resume without pause reached the player")
	}

	q.Enqueue(chunk("a"))
	q.Pause()
	q.Resume()

	if p.pauses != 1 || p.resumes != 1 {
		t.Errorf("pauses=%d resumes=%d", p.pauses, p.resumes)
	}
}

func TestQueue_StopReleasesEverything(t *testing.T) {
	p := &fakePlayer{}
	var r recorder
	q := New(p, r.hooks())

	playing := chunk("a")
	waiting := chunk("b")
	q.Enqueue(playing)
	q.Enqueue(waiting)
	pending := q.Reserve()

	q.Stop()
	q.Stop()

	if p.halts != 1 {
		t.Errorf("expected 1 halt, got %d", p.halts)
	}
	if !playing.Released() || !waiting.Released() {
		t.Error("chunks not released on stop")
	}
	if q.Len() != 0 {
		t.Errorf("queue not cleared, len %d", q.Len())
	}
	if _, ok := q.Playing(); ok {
		t.Error("still playing after stop")
	}
	if r.drained != 0 {
		t.Error("stop reported drained")
	}

	late := chunk("late")
	if q.Fill(pending, late) {
		t.Error("fill after stop accepted")
	}
	if !late.Released() {
		t.Error("late chunk not released")
	}

	another := chunk("c")
	if _, err := q.Enqueue(another); !errors.Is(err, ErrQueueStopped) {
		t.Errorf("expected ErrQueueStopped, got %v", err)
	}
	if !another.Released() {
		t.Error("rejected chunk not released")
	}
}

func TestQueue_DrainedAfterAllFailed(t *testing.T) {
	p := &fakePlayer{}
	var r recorder
	q := New(p, r.hooks())

	a, b := q.Reserve(), q.Reserve()
	q.Fail(b, errors.New("second"))
	if r.drained != 0 {
		t.Fatal("drained while head pending")
	}
	q.Fail(a, errors.New("first"))

	if r.drained != 1 {
		t.Errorf("expected drained once, got %d", r.drained)
	}
	if len(p.played) != 0 {
		t.Errorf("nothing should have played: %v", p.played)
	}
}
