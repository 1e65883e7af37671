package tts

import (
	"context"
	"time"
)

// Notifier shows transient feedback to the user. Notifications are never
// part of pipeline correctness; implementations must not block.
type Notifier interface {
	Notify(message string, severity Severity, duration time.Duration)
}

// DownloadSink persists an exported audio payload. It returns the location
// the payload was written to.
type DownloadSink interface {
	Save(ctx context.Context, payload []byte, filename string) (string, error)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(string, Severity, time.Duration) {}
