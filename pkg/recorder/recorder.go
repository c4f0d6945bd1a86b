// Package recorder implements the push-to-talk capture state machine:
// arm the microphone, accumulate PCM while the talk control is held,
// then encode and transcribe the segment when it is released.
package recorder

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/weareedt/organic/pkg/audioio"
	"github.com/weareedt/organic/pkg/relay"
)

// State is the recorder lifecycle state.
type State int

const (
	// StateIdle means no capture is in progress.
	StateIdle State = iota
	// StateRecording means the microphone is live and accumulating.
	StateRecording
	// StateProcessing means a released segment is being transcribed.
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Events receives recorder notifications. Callbacks are invoked from
// recorder goroutines and must not block.
type Events interface {
	StateChanged(state State)
	Transcript(text string)
	RecorderError(err error)
}

// SourceFactory creates the capture source on first use.
type SourceFactory func() (audioio.Source, error)

// Config holds recorder tunables.
type Config struct {
	// MinHold is the minimum hold duration. Shorter presses are
	// discarded without transcription.
	MinHold time.Duration

	// TranscribeTimeout bounds the transcription request for one segment.
	TranscribeTimeout time.Duration

	// BannedPhrases are transcripts to suppress; any transcript
	// containing one (case-insensitive) is replaced with empty text.
	BannedPhrases []string
}

// Deps are the recorder's collaborators.
type Deps struct {
	Source      SourceFactory
	Encoder     SegmentEncoder
	Transcriber relay.Transcriber
	Events      Events
	Logger      *slog.Logger
}

// Recorder is the push-to-talk state machine. All methods are safe for
// concurrent use.
type Recorder struct {
	cfg       Config
	newSource SourceFactory
	encoder   SegmentEncoder
	tr        relay.Transcriber
	events    Events
	blocklist *Blocklist
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	source    audioio.Source
	deviceErr *DeviceError
	startedAt time.Time
	chunks    []audioio.AudioChunk
	level     float64
	gen       uint64
}

// New creates a recorder. The capture source is not opened until the
// first Start.
func New(cfg Config, deps Deps) *Recorder {
	if cfg.MinHold <= 0 {
		cfg.MinHold = 500 * time.Millisecond
	}
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = 30 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	events := deps.Events
	if events == nil {
		events = noopEvents{}
	}
	return &Recorder{
		cfg:       cfg,
		newSource: deps.Source,
		encoder:   deps.Encoder,
		tr:        deps.Transcriber,
		events:    events,
		blocklist: NewBlocklist(cfg.BannedPhrases),
		logger:    logger.With("component", "recorder"),
	}
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Level returns the most recent microphone RMS level in [0, 1].
// Zero when not recording.
func (r *Recorder) Level() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

// Start arms the microphone. A no-op while already recording or while a
// previous segment is still processing. Returns the sticky device error
// if one is pending.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return nil
	}
	if r.deviceErr != nil {
		err := r.deviceErr
		r.mu.Unlock()
		return err
	}

	if r.source == nil {
		src, err := r.newSource()
		if err != nil {
			devErr := &DeviceError{Err: err}
			r.deviceErr = devErr
			r.mu.Unlock()
			r.events.RecorderError(devErr)
			return devErr
		}
		r.source = src
	}

	if err := r.source.Start(ctx); err != nil {
		devErr := &DeviceError{Err: err}
		r.deviceErr = devErr
		r.source = nil
		r.mu.Unlock()
		r.events.RecorderError(devErr)
		return devErr
	}

	r.state = StateRecording
	r.startedAt = time.Now()
	r.chunks = nil
	r.gen++
	gen := r.gen
	stream := r.source.Stream()
	r.mu.Unlock()

	go r.captureLoop(stream, gen)

	r.logger.Debug("recording started")
	r.events.StateChanged(StateRecording)
	return nil
}

// captureLoop drains the source stream for one recording generation.
// A closed stream while still recording means the device died.
func (r *Recorder) captureLoop(stream <-chan audioio.AudioChunk, gen uint64) {
	for chunk := range stream {
		r.mu.Lock()
		if r.gen != gen || r.state != StateRecording {
			r.mu.Unlock()
			return
		}
		r.chunks = append(r.chunks, chunk)
		r.level = chunk.RMS()
		r.mu.Unlock()
	}

	r.mu.Lock()
	if r.gen != gen || r.state != StateRecording {
		r.mu.Unlock()
		return
	}
	devErr := &DeviceError{Err: context.Canceled}
	r.deviceErr = devErr
	r.source = nil
	r.state = StateIdle
	r.level = 0
	r.chunks = nil
	r.mu.Unlock()

	r.logger.Warn("capture stream closed mid-recording")
	r.events.RecorderError(devErr)
	r.events.StateChanged(StateIdle)
}

// Stop disarms the microphone. Segments held shorter than MinHold are
// discarded; otherwise the segment is transcribed asynchronously.
// A no-op when not recording.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return nil
	}

	held := time.Since(r.startedAt)
	chunks := r.chunks
	r.chunks = nil
	r.level = 0
	r.gen++
	source := r.source

	if held < r.cfg.MinHold {
		r.state = StateIdle
		r.mu.Unlock()

		if source != nil {
			_ = source.Stop()
		}
		r.logger.Debug("segment discarded", "held", held, "min_hold", r.cfg.MinHold)
		r.events.StateChanged(StateIdle)
		return nil
	}

	r.state = StateProcessing
	r.mu.Unlock()

	if source != nil {
		_ = source.Stop()
	}
	r.logger.Debug("segment captured", "held", held, "chunks", len(chunks))
	r.events.StateChanged(StateProcessing)

	go r.process(chunks)
	return nil
}

// process encodes and transcribes one segment, then returns to idle.
// Runs detached from the caller so a released button never blocks.
func (r *Recorder) process(chunks []audioio.AudioChunk) {
	text, err := r.transcribe(chunks)
	if err != nil {
		r.logger.Warn("transcription failed", "err", err)
		r.events.RecorderError(err)
		text = ""
	}

	if text != "" && r.blocklist.Blocked(text) {
		r.logger.Debug("transcript suppressed by blocklist")
		text = ""
	}

	r.mu.Lock()
	r.state = StateIdle
	r.mu.Unlock()

	r.events.Transcript(text)
	r.events.StateChanged(StateIdle)
}

func (r *Recorder) transcribe(chunks []audioio.AudioChunk) (string, error) {
	segment, err := r.encoder.Encode(chunks)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.TranscribeTimeout)
	defer cancel()

	text, err := r.tr.Transcribe(ctx, segment)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// VisibilityLost force-stops an active recording without transcribing.
// Called when the user surface loses focus mid-hold.
func (r *Recorder) VisibilityLost() {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return
	}
	r.state = StateIdle
	r.chunks = nil
	r.level = 0
	r.gen++
	source := r.source
	r.mu.Unlock()

	if source != nil {
		_ = source.Stop()
	}
	r.logger.Debug("recording aborted, surface hidden")
	r.events.StateChanged(StateIdle)
}

// RetryDevice clears the sticky device error so the next Start attempts
// to reopen the capture device.
func (r *Recorder) RetryDevice() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deviceErr = nil
	r.source = nil
}

type noopEvents struct{}

func (noopEvents) StateChanged(State)  {}
func (noopEvents) Transcript(string)   {}
func (noopEvents) RecorderError(error) {}
