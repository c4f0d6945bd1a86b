// Package relay provides the client for the conversation relay service,
// which fronts speech recognition, the language model, and speech
// synthesis behind three HTTP endpoints.
package relay

import "context"

// Transcriber converts recorded audio into text.
type Transcriber interface {
	// Transcribe sends an audio segment and returns the recognized text.
	// The segment is an ogg/opus container as produced by the recorder.
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Forwarder sends a user message to the language model and returns the
// assistant's reply.
type Forwarder interface {
	ForwardMessage(ctx context.Context, message string) (string, error)
}

// Synthesizer converts reply text into playable audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Service is the full relay surface consumed by the dialogue layer.
type Service interface {
	Transcriber
	Forwarder
	Synthesizer
}
