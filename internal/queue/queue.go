package queue

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/audio"
)

// ErrQueueStopped is returned when chunks are added to a stopped queue.
var ErrQueueStopped = errors.New("queue is stopped")

// Player plays one chunk at a time. After Play succeeds the owner of the
// queue must call Finished with the same id once, when the chunk ends.
type Player interface {
	Play(id uint64, c *audio.Chunk) error
	Pause()
	Resume()
	Halt()
}

// Hooks are called synchronously from the goroutine driving the queue.
type Hooks struct {
	// OnStart is called when an item begins playing.
	OnStart func(id uint64)
	// OnError is called for every failed item. The queue keeps going.
	OnError func(id uint64, err error)
	// OnDrained is called once each time the queue runs empty with nothing
	// playing.
	OnDrained func()
}

type slotState int

const (
	slotPending slotState = iota
	slotReady
	slotFailed
	slotReleased
)

// Slot is a reserved position in the queue. Its place in the playback order
// is fixed when it is reserved, whatever order it is filled in.
type Slot struct {
	id    uint64
	state slotState
	chunk *audio.Chunk
}

// ID returns the id the slot's chunk will be played under.
func (s *Slot) ID() uint64 { return s.id }

// Stats tracks queue activity.
type Stats struct {
	TotalEnqueued int64
	TotalPlayed   int64
	TotalFailed   int64
	TotalReleased int64
	CurrentSize   int
	PeakSize      int
	LastEnqueue   time.Time
	LastDequeue   time.Time
}

// Queue plays audio chunks back-to-back in the order their slots were
// reserved. It is not safe for concurrent use: one goroutine drives every
// method, including Finished.
type Queue struct {
	player Player
	hooks  Hooks
	logger *log.Logger

	slots    []*Slot
	nextID   uint64
	playing  *Slot
	paused   bool
	stopped  bool
	reported bool

	stats Stats
}

// New returns an empty queue that plays through player.
func New(player Player, hooks Hooks) *Queue {
	return &Queue{
		player:   player,
		hooks:    hooks,
		logger:   log.WithPrefix("queue"),
		nextID:   1,
		reported: true,
	}
}

// Reserve appends an empty slot at the tail.
func (q *Queue) Reserve() *Slot {
	s := &Slot{id: q.nextID}
	q.nextID++
	if q.stopped {
		s.state = slotReleased
		return s
	}

	q.slots = append(q.slots, s)
	q.reported = false
	q.stats.CurrentSize = len(q.slots)
	q.stats.PeakSize = max(q.stats.PeakSize, len(q.slots))
	return s
}

// Fill stores c in s and starts playback if s is at the head and nothing is
// playing. A chunk for a slot that was already released is released
// immediately and false is returned.
func (q *Queue) Fill(s *Slot, c *audio.Chunk) bool {
	if s.state != slotPending {
		c.Release()
		q.stats.TotalReleased++
		return false
	}

	s.state = slotReady
	s.chunk = c
	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	q.advance()
	return true
}

// Fail marks s as failed. The error is reported and the slot is skipped.
func (q *Queue) Fail(s *Slot, err error) {
	if s.state != slotPending {
		return
	}
	s.state = slotFailed
	q.stats.TotalFailed++
	q.reportError(s.id, err)
	q.advance()
}

// Enqueue appends c at the tail, starting it if nothing is playing.
func (q *Queue) Enqueue(c *audio.Chunk) (uint64, error) {
	if q.stopped {
		c.Release()
		return 0, ErrQueueStopped
	}
	s := q.Reserve()
	q.Fill(s, c)
	return s.id, nil
}

// Finished reports that the item with id ended, with err set if playback
// failed. The item's chunk is released and the next item starts. Reports
// for anything other than the current item are ignored.
func (q *Queue) Finished(id uint64, err error) bool {
	if q.playing == nil || q.playing.id != id {
		q.logger.Debug("Ignoring stale completion", "id", id)
		return false
	}

	done := q.playing
	q.playing = nil
	q.release(done)

	if err != nil {
		q.stats.TotalFailed++
		q.reportError(id, err)
	} else {
		q.stats.TotalPlayed++
	}

	q.advance()
	return true
}

// advance starts the head item when nothing is playing and the queue is
// not paused. Failed items are dropped; an unfilled head blocks everything
// behind it.
func (q *Queue) advance() {
	for q.playing == nil && !q.paused && !q.stopped {
		if len(q.slots) == 0 {
			if !q.reported {
				q.reported = true
				q.logger.Debug("Queue drained", "played", q.stats.TotalPlayed, "failed", q.stats.TotalFailed)
				if q.hooks.OnDrained != nil {
					q.hooks.OnDrained()
				}
			}
			return
		}

		head := q.slots[0]
		switch head.state {
		case slotPending:
			return
		case slotFailed:
			q.pop()
			continue
		}

		q.pop()
		q.playing = head
		q.stats.LastDequeue = time.Now()
		if err := q.player.Play(head.id, head.chunk); err != nil {
			q.playing = nil
			q.release(head)
			q.stats.TotalFailed++
			q.reportError(head.id, err)
			continue
		}

		q.logger.Debug("Playing", "id", head.id, "bytes", head.chunk.Size(), "remaining", len(q.slots))
		if q.hooks.OnStart != nil {
			q.hooks.OnStart(head.id)
		}
	}
}

func (q *Queue) pop() {
	q.slots[0] = nil
	q.slots = q.slots[1:]
	q.stats.CurrentSize = len(q.slots)
}

func (q *Queue) release(s *Slot) {
	if s.chunk != nil {
		s.chunk.Release()
		s.chunk = nil
		q.stats.TotalReleased++
	}
	s.state = slotReleased
}

func (q *Queue) reportError(id uint64, err error) {
	if q.hooks.OnError != nil {
		q.hooks.OnError(id, err)
	}
}

// Pause pauses the current item and holds back the next one until Resume.
func (q *Queue) Pause() {
	if q.paused || q.stopped {
		return
	}
	q.paused = true
	if q.playing != nil {
		q.player.Pause()
	}
}

// Resume continues the current item, or starts the next one.
func (q *Queue) Resume() {
	if !q.paused || q.stopped {
		return
	}
	q.paused = false
	if q.playing != nil {
		q.player.Resume()
	}
	q.advance()
}

// Stop halts the current item, releases every queued chunk and clears the
// queue. OnDrained is not called. Stop is idempotent.
func (q *Queue) Stop() {
	if q.stopped {
		return
	}
	q.stopped = true

	if q.playing != nil {
		q.player.Halt()
		q.release(q.playing)
		q.playing = nil
	}
	for _, s := range q.slots {
		q.release(s)
	}
	clear(q.slots)
	q.slots = nil
	q.paused = false
	q.reported = true
	q.stats.CurrentSize = 0
}

// Len returns the number of items waiting behind the current one.
func (q *Queue) Len() int { return len(q.slots) }

// Playing returns the id of the current item.
func (q *Queue) Playing() (uint64, bool) {
	if q.playing == nil {
		return 0, false
	}
	return q.playing.id, true
}

// Paused reports whether the queue is paused.
func (q *Queue) Paused() bool { return q.paused }

// Stopped reports whether Stop has been called.
func (q *Queue) Stopped() bool { return q.stopped }

// Stats returns a snapshot of queue activity.
func (q *Queue) Stats() Stats { return q.stats }
