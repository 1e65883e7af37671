package tts

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors
var (
	// ErrEmptyText is returned when a session is started without text.
	ErrEmptyText = errors.New("no text to speak")

	// ErrDeviceClosed is returned when scheduling onto a released device.
	ErrDeviceClosed = errors.New("audio device closed")

	// ErrCoordinatorClosed is returned when the coordinator loop has exited.
	ErrCoordinatorClosed = errors.New("playback coordinator closed")
)

// NetworkError is a connectivity failure: DNS, refused connections,
// resets and timeouts while talking to the speech endpoint.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response from the speech endpoint.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, http.StatusText(e.Status))
}

// CancelledError is the outcome of an intentional abort: stop() or a newer
// session superseding this one. It is never shown to the user.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cancelled: %v", e.Err)
	}
	return "cancelled"
}

// Unwrap returns the underlying error
func (e *CancelledError) Unwrap() error { return e.Err }

// PlaybackError is an output device or decode failure.
type PlaybackError struct {
	Op  string
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *PlaybackError) Unwrap() error { return e.Err }

// ValidationError is malformed configuration or input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsCancelled reports whether err is, or wraps, a CancelledError.
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}

// UserMessage translates an error into a short, category-based message
// suitable for a transient notification. It returns an empty string for
// nil and cancelled errors.
func UserMessage(err error) string {
	if err == nil || IsCancelled(err) {
		return ""
	}

	var (
		netErr   *NetworkError
		httpErr  *HTTPError
		playErr  *PlaybackError
		validErr *ValidationError
	)
	switch {
	case errors.As(err, &netErr):
		return "Can't reach the speech service. Check your connection."
	case errors.As(err, &httpErr):
		switch {
		case httpErr.Status == http.StatusUnauthorized || httpErr.Status == http.StatusForbidden:
			return "The speech service rejected the API key."
		case httpErr.Status == http.StatusTooManyRequests:
			return "Rate limited by the speech service. Try again shortly."
		case httpErr.Status >= 500:
			return "The speech service is having problems. Try again later."
		default:
			return fmt.Sprintf("The speech service returned an error (%d).", httpErr.Status)
		}
	case errors.As(err, &playErr):
		return "Audio playback failed."
	case errors.As(err, &validErr):
		return "Configuration problem: " + validErr.Error()
	default:
		return "Something went wrong while reading aloud."
	}
}
