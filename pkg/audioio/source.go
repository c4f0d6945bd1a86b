package audioio

import (
	"context"
	"io"
	"math"
)

// AudioChunk represents a chunk of PCM16 audio.
type AudioChunk struct {
	// Samples contains PCM16 audio samples (little-endian order on the wire).
	Samples []int16

	// SampleRate is the sample rate of this chunk.
	SampleRate int

	// Channels is the number of channels in this chunk.
	Channels int
}

// Bytes returns the raw little-endian bytes of the chunk.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// Duration returns the playback duration of this chunk in seconds.
func (c *AudioChunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// RMS returns the root-mean-square amplitude of the chunk, normalized
// to [0,1]. Used for coarse input-level feedback while recording.
func (c *AudioChunk) RMS() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range c.Samples {
		f := float64(s) / 32768
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(c.Samples)))
}

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins audio capture. Chunks are then available via Stream.
	Start(ctx context.Context) error

	// Stop halts audio capture. Safe to call multiple times.
	Stop() error

	// Stream returns a channel that receives audio chunks.
	// The channel is closed when the source is stopped.
	Stream() <-chan AudioChunk

	// Config returns the capture configuration fixed at acquisition time.
	Config() Config

	// Name returns the backend name (e.g. "ffmpeg", "mock").
	Name() string

	// Close releases all resources. The source cannot be restarted after.
	io.Closer
}
