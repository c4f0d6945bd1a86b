// Package audioio provides audio capture and playback for the voice pipeline.
//
// Two backends are supported: an ffmpeg-based backend for real devices and a
// mock backend for tests and CI. Capture parameters (sample rate, channel
// count, filtering) are fixed once at stream acquisition time in Config and
// never renegotiated per call.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects the best available backend for the platform.
	BackendAuto Backend = "auto"
	// BackendFFmpeg shells out to ffmpeg for capture and playback.
	BackendFFmpeg Backend = "ffmpeg"
	// BackendMock uses an in-process implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio device configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	Backend Backend

	// SampleRate is the audio sample rate in Hz. Default: 16000.
	SampleRate int

	// Channels is the number of audio channels. Default: 1 (mono).
	Channels int

	// BufferDuration is the size of audio buffers. Default: 20ms.
	BufferDuration time.Duration

	// Device is the platform-specific device identifier
	// (e.g. "default", "hw:0,0"). Empty selects the system default.
	Device string

	// NoiseSuppression enables a denoise filter on capture.
	NoiseSuppression bool

	// EchoCancellation enables echo cancellation on capture where the
	// backend supports it.
	EchoCancellation bool
}

// DefaultConfig returns capture defaults matching the transcription
// service's expected input: 16kHz mono with filtering enabled.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendAuto,
		SampleRate:       16000,
		Channels:         1,
		BufferDuration:   20 * time.Millisecond,
		NoiseSuppression: true,
		EchoCancellation: true,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audioio: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("audioio: channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("audioio: buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of samples per buffer per channel.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}
