package session

import (
	"net/http"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/speech"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDeviceFactory sets how output devices are opened. The default opens
// the system audio output.
func WithDeviceFactory(open audio.DeviceFactory) Option {
	return func(c *Coordinator) { c.open = open }
}

// WithNotifier sets where user-facing messages go.
func WithNotifier(n tts.Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithDownloadSink sets where exported payloads are saved.
func WithDownloadSink(s tts.DownloadSink) Option {
	return func(c *Coordinator) { c.sink = s }
}

// WithStateListener registers fn for every transport state change. It is
// called from the coordinator loop and must not call back into the
// coordinator.
func WithStateListener(fn func(from, to tts.TransportState)) Option {
	return func(c *Coordinator) { c.listeners = append(c.listeners, fn) }
}

// Connector builds a synthesizer for the given settings.
type Connector func(config.Settings) (Synthesizer, error)

// SpeechConnector connects to the configured endpoint with the speech
// client, sharing payload cache c between connections. c may be nil.
func SpeechConnector(c cache.Cache) Connector {
	return func(s config.Settings) (Synthesizer, error) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = s.Timeout

		client, err := speech.New(speech.Options{
			Endpoint:          s.Endpoint,
			AuthKey:           s.AuthKey,
			HTTPClient:        &http.Client{Transport: transport},
			RequestsPerMinute: s.RequestsPerMinute,
			Cache:             c,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
