// Package config loads readaloud settings from viper and keeps them current
// while the program runs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// DefaultEndpoint is the OpenAI API base URL.
const DefaultEndpoint = "https://api.openai.com/v1"

// Settings is everything the playback pipeline reads from configuration.
type Settings struct {
	Endpoint string
	AuthKey  string
	Voice    string
	Model    string
	Speed    float64
	Volume   float64

	Mode           string
	ResponseFormat string
	SampleRate     int
	Channels       int

	SegmentThreshold  int
	Prefetch          int
	RequestsPerMinute int
	Timeout           time.Duration

	Cache     CacheSettings
	OutputDir string
	Markdown  bool
}

// CacheSettings configures the synthesis cache.
type CacheSettings struct {
	Enabled bool
	Dir     string
	MaxSize int // megabytes
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Endpoint:          DefaultEndpoint,
		Voice:             "alloy",
		Model:             "tts-1",
		Speed:             1.0,
		Volume:            1.0,
		Mode:              tts.ModeQueue.String(),
		ResponseFormat:    string(tts.FormatMP3),
		SampleRate:        24000,
		Channels:          1,
		SegmentThreshold:  200,
		Prefetch:          3,
		RequestsPerMinute: 0,
		Timeout:           60 * time.Second,
		Cache: CacheSettings{
			Enabled: true,
			MaxSize: 256,
		},
		OutputDir: ".",
	}
}

// SetDefaults registers DefaultSettings with v so that they show up in
// viper lookups and generated help.
func SetDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("endpoint", d.Endpoint)
	v.SetDefault("voice", d.Voice)
	v.SetDefault("model", d.Model)
	v.SetDefault("speed", d.Speed)
	v.SetDefault("volume", d.Volume)
	v.SetDefault("mode", d.Mode)
	v.SetDefault("response_format", d.ResponseFormat)
	v.SetDefault("audio.sample_rate", d.SampleRate)
	v.SetDefault("audio.channels", d.Channels)
	v.SetDefault("segment_threshold", d.SegmentThreshold)
	v.SetDefault("prefetch", d.Prefetch)
	v.SetDefault("requests_per_minute", d.RequestsPerMinute)
	v.SetDefault("timeout", d.Timeout.String())
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("markdown", false)
}

// Load reads settings from v on top of DefaultSettings and validates them.
func Load(v *viper.Viper) (Settings, error) {
	cfg := DefaultSettings()

	// Endpoint
	if v.IsSet("endpoint") {
		cfg.Endpoint = strings.TrimSpace(v.GetString("endpoint"))
	}
	if v.IsSet("auth_key") {
		cfg.AuthKey = v.GetString("auth_key")
	}

	// Voice
	if v.IsSet("voice") {
		cfg.Voice = v.GetString("voice")
	}
	if v.IsSet("model") {
		cfg.Model = v.GetString("model")
	}
	if v.IsSet("speed") {
		cfg.Speed = v.GetFloat64("speed")
	}
	if v.IsSet("volume") {
		cfg.Volume = v.GetFloat64("volume")
	}

	// Delivery
	if v.IsSet("mode") {
		cfg.Mode = v.GetString("mode")
	}
	if v.IsSet("response_format") {
		cfg.ResponseFormat = v.GetString("response_format")
	}
	if v.IsSet("audio.sample_rate") {
		cfg.SampleRate = v.GetInt("audio.sample_rate")
	}
	if v.IsSet("audio.channels") {
		cfg.Channels = v.GetInt("audio.channels")
	}
	if v.IsSet("segment_threshold") {
		cfg.SegmentThreshold = v.GetInt("segment_threshold")
	}
	if v.IsSet("prefetch") {
		cfg.Prefetch = v.GetInt("prefetch")
	}
	if v.IsSet("requests_per_minute") {
		cfg.RequestsPerMinute = v.GetInt("requests_per_minute")
	}
	if v.IsSet("timeout") {
		d, err := time.ParseDuration(v.GetString("timeout"))
		if err != nil {
			return cfg, &tts.ValidationError{Field: "timeout", Reason: err.Error()}
		}
		cfg.Timeout = d
	}

	// Cache
	if v.IsSet("cache.enabled") {
		cfg.Cache.Enabled = v.GetBool("cache.enabled")
	}
	if v.IsSet("cache.dir") {
		cfg.Cache.Dir = v.GetString("cache.dir")
	}
	if v.IsSet("cache.max_size") {
		cfg.Cache.MaxSize = v.GetInt("cache.max_size")
	}

	// Output
	if v.IsSet("output_dir") {
		cfg.OutputDir = v.GetString("output_dir")
	}
	if v.IsSet("markdown") {
		cfg.Markdown = v.GetBool("markdown")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the settings can drive a session.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Endpoint) == "" {
		return &tts.ValidationError{Field: "endpoint", Reason: "must not be empty"}
	}
	if s.Voice == "" {
		return &tts.ValidationError{Field: "voice", Reason: "must not be empty"}
	}
	if s.Model == "" {
		return &tts.ValidationError{Field: "model", Reason: "must not be empty"}
	}
	if s.Speed < 0.25 || s.Speed > 4.0 {
		return &tts.ValidationError{Field: "speed", Reason: fmt.Sprintf("must be between 0.25 and 4.0, got %.2f", s.Speed)}
	}
	if s.Volume < 0 || s.Volume > 1 {
		return &tts.ValidationError{Field: "volume", Reason: fmt.Sprintf("must be between 0 and 1, got %.2f", s.Volume)}
	}
	if _, err := tts.ParseMode(s.Mode); err != nil {
		return err
	}
	if f := tts.Format(s.ResponseFormat); f != tts.FormatMP3 && f != tts.FormatPCM {
		return &tts.ValidationError{Field: "response_format", Reason: "must be mp3 or pcm"}
	}
	if err := s.AudioFormat().Validate(); err != nil {
		return err
	}
	if s.SegmentThreshold <= 0 {
		return &tts.ValidationError{Field: "segment_threshold", Reason: "must be positive"}
	}
	if s.Prefetch < 1 {
		return &tts.ValidationError{Field: "prefetch", Reason: "must be at least 1"}
	}
	if s.RequestsPerMinute < 0 {
		return &tts.ValidationError{Field: "requests_per_minute", Reason: "must not be negative"}
	}
	if s.Timeout < 0 {
		return &tts.ValidationError{Field: "timeout", Reason: "must not be negative"}
	}
	if s.Cache.Enabled && (s.Cache.MaxSize < 1 || s.Cache.MaxSize > 10000) {
		return &tts.ValidationError{Field: "cache.max_size", Reason: fmt.Sprintf("must be between 1 and 10000 MB, got %d", s.Cache.MaxSize)}
	}
	return nil
}

// SpeechVoice returns the synthesis parameters sent with every request.
func (s Settings) SpeechVoice() tts.Voice {
	return tts.Voice{Model: s.Model, Name: s.Voice, Speed: s.Speed}
}

// DeliveryMode returns the parsed mode, falling back to queued playback.
func (s Settings) DeliveryMode() tts.Mode {
	m, err := tts.ParseMode(s.Mode)
	if err != nil {
		return tts.ModeQueue
	}
	return m
}

// EncodedFormat is the response format requested for queued, single and
// exported payloads. Streaming always requests raw PCM.
func (s Settings) EncodedFormat() tts.Format {
	return tts.Format(s.ResponseFormat)
}

// AudioFormat returns the format of streamed PCM and of the output device.
func (s Settings) AudioFormat() audio.Format {
	return audio.Format{SampleRate: s.SampleRate, Channels: s.Channels}
}

// CacheConfig returns the synthesis cache configuration. Dir is empty when
// the cache should stay in memory.
func (s Settings) CacheConfig(defaultDir string) cache.Config {
	cfg := cache.DefaultConfig()
	cfg.DiskCapacity = int64(s.Cache.MaxSize) * 1024 * 1024
	cfg.Dir = defaultDir
	if s.Cache.Dir != "" {
		cfg.Dir = s.Cache.Dir
		if dir, err := homedir.Expand(s.Cache.Dir); err == nil {
			cfg.Dir = dir
		}
	}
	return cfg
}
