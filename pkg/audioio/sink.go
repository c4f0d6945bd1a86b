package audioio

import (
	"context"
	"io"
)

// Sink plays audio to a speaker or other output device.
type Sink interface {
	// Start begins audio playback. After Start, audio can be written
	// via Write.
	Start(ctx context.Context) error

	// Stop halts audio playback. Safe to call multiple times.
	Stop() error

	// Write sends an audio chunk to the output device.
	// May block if the output buffer is full.
	Write(ctx context.Context, chunk AudioChunk) error

	// Clear discards all buffered audio immediately. Used to interrupt
	// playback when a new reply supersedes the current one.
	Clear() error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g. "ffmpeg", "mock").
	Name() string

	// Close releases all resources. The sink cannot be restarted after.
	io.Closer
}
