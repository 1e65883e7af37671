package tts

import "time"

// TransportState represents the process-wide playback transport state.
type TransportState int

const (
	// StateIdle indicates nothing is playing. It is the initial state and
	// the state every session returns to when it stops or completes.
	StateIdle TransportState = iota

	// StatePlaying indicates a session is producing audio.
	StatePlaying

	// StatePaused indicates the active session is suspended.
	StatePaused
)

// String returns the string representation of the state
func (s TransportState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Mode selects how a session delivers audio.
type Mode int

const (
	// ModeSingle fetches the whole text as one encoded payload and plays it.
	ModeSingle Mode = iota

	// ModeQueue splits long text into units, fetches them concurrently and
	// plays the payloads back-to-back in their original order.
	ModeQueue

	// ModeStream plays raw PCM progressively while it is still arriving.
	ModeStream

	// ModeExport fetches an encoded payload and hands it to a download sink
	// instead of playing it.
	ModeExport
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeQueue:
		return "queue"
	case ModeStream:
		return "stream"
	case ModeExport:
		return "export"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name as used in configuration and flags.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "single":
		return ModeSingle, nil
	case "queue", "":
		return ModeQueue, nil
	case "stream":
		return ModeStream, nil
	case "export":
		return ModeExport, nil
	default:
		return ModeQueue, &ValidationError{Field: "mode", Reason: "unknown mode " + s}
	}
}

// Format is the response_format requested from the speech endpoint.
type Format string

const (
	// FormatMP3 is a complete encoded payload.
	FormatMP3 Format = "mp3"

	// FormatPCM is raw interleaved 16-bit little-endian samples.
	FormatPCM Format = "pcm"
)

// Extension returns the file extension used when exporting the format.
func (f Format) Extension() string {
	if f == FormatPCM {
		return ".pcm"
	}
	return ".mp3"
}

// Voice carries the synthesis parameters sent with every request.
type Voice struct {
	Model string
	Name  string
	Speed float64
}

// Severity classifies a user notification.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for problems that don't stop the session.
	SeverityWarning
	// SeverityError is for failures.
	SeverityError
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// DefaultNotifyDuration is how long transient notifications stay visible.
const DefaultNotifyDuration = 4 * time.Second
