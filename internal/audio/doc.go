// Package audio provides the clocked output device used by the playback
// pipeline, built on oto/v3, together with PCM and MP3 decoding, sample
// format conversion and a single-item track player.
//
// Device time is counted in frames at the device sample rate. A buffer
// scheduled at frame N starts sounding when the device clock reaches N;
// buffers scheduled in the past start immediately.
package audio
