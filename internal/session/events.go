package session

import (
	"github.com/google/uuid"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/queue"
)

type eventKind int

const (
	// a unit's payload arrived or its request failed
	eventFetched eventKind = iota
	// a queued track finished playing
	eventTrackDone
	// the streaming read loop returned
	eventStreamDone
	// an export was written or failed
	eventExported
)

// event reports the outcome of work running outside the coordinator loop.
type event struct {
	session uuid.UUID
	kind    eventKind

	slot  *queue.Slot
	chunk *audio.Chunk
	track uint64
	path  string
	err   error
}

// discard frees whatever a stale event carries.
func (e event) discard() {
	if e.chunk != nil {
		e.chunk.Release()
	}
}

func (k eventKind) String() string {
	switch k {
	case eventFetched:
		return "fetched"
	case eventTrackDone:
		return "track-done"
	case eventStreamDone:
		return "stream-done"
	case eventExported:
		return "exported"
	default:
		return "unknown"
	}
}
