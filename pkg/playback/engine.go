// Package playback plays synthesized speech and exposes live frequency
// band levels for visual feedback while audio is audible.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/weareedt/organic/pkg/audioio"
)

// Config holds playback tunables.
type Config struct {
	// SampleRate is the PCM output rate. Defaults to 24000.
	SampleRate int
	// Channels is the PCM channel count. Defaults to mono.
	Channels int
	// Volume is the output gain in [0, 1]. Defaults to 1.
	Volume float64
	// AnalysisTick is the band level refresh interval. Defaults to 16ms.
	AnalysisTick time.Duration
	// ChunkDuration is the write granularity. Defaults to 20ms.
	ChunkDuration time.Duration
}

func (c *Config) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 24000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.Volume <= 0 || c.Volume > 1 {
		c.Volume = 1
	}
	if c.AnalysisTick <= 0 {
		c.AnalysisTick = 16 * time.Millisecond
	}
	if c.ChunkDuration <= 0 {
		c.ChunkDuration = 20 * time.Millisecond
	}
}

// Engine plays one audio payload at a time. Starting a new payload
// stops the previous one first. All methods are safe for concurrent use.
type Engine struct {
	cfg      Config
	decoder  Decoder
	sink     audioio.Sink
	analyser *Analyser
	logger   *slog.Logger

	// OnPlaybackStart fires when audio becomes audible.
	OnPlaybackStart func()
	// OnPlaybackEnd fires when audio stops, whether it finished or was cut.
	OnPlaybackEnd func()

	mu      sync.Mutex
	session *session
	levels  [3]float64
}

type session struct {
	samples   []int16
	duration  time.Duration
	startedAt time.Time
	stop      chan struct{}
	done      chan struct{}
}

// NewEngine creates a playback engine.
func NewEngine(cfg Config, decoder Decoder, sink audioio.Sink, logger *slog.Logger) *Engine {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		decoder:  decoder,
		sink:     sink,
		analyser: NewAnalyser(),
		logger:   logger.With("component", "playback"),
	}
}

// Play decodes the payload and starts playing it, stopping any session
// already in progress first. It returns the resolved audio duration
// immediately; playback continues in the background.
func (e *Engine) Play(ctx context.Context, data []byte) (time.Duration, error) {
	samples, err := e.decoder.Decode(ctx, data)
	if err != nil {
		return 0, err
	}

	frames := len(samples) / e.cfg.Channels
	duration := time.Duration(frames) * time.Second / time.Duration(e.cfg.SampleRate)

	e.Stop()

	if err := e.sink.Start(ctx); err != nil {
		return 0, err
	}

	s := &session{
		samples:   samples,
		duration:  duration,
		startedAt: time.Now(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	e.mu.Lock()
	e.session = s
	e.mu.Unlock()

	if e.OnPlaybackStart != nil {
		e.OnPlaybackStart()
	}
	e.logger.Debug("playback started", "duration", duration, "samples", len(samples))

	go e.run(ctx, s)
	return duration, nil
}

// run paces PCM writes to the sink and refreshes band levels until the
// session ends or is stopped.
func (e *Engine) run(ctx context.Context, s *session) {
	defer close(s.done)

	writeTicker := time.NewTicker(e.cfg.ChunkDuration)
	defer writeTicker.Stop()
	analysisTicker := time.NewTicker(e.cfg.AnalysisTick)
	defer analysisTicker.Stop()

	chunkSamples := e.cfg.SampleRate * int(e.cfg.ChunkDuration.Milliseconds()) / 1000 * e.cfg.Channels
	offset := 0
	endAt := s.startedAt.Add(s.duration)

	// Prime the sink so audio starts without a gap.
	offset = e.writeChunk(ctx, s, offset, chunkSamples)

	for {
		select {
		case <-s.stop:
			return
		case <-analysisTicker.C:
			e.updateLevels(s)
		case <-writeTicker.C:
			if offset < len(s.samples) {
				offset = e.writeChunk(ctx, s, offset, chunkSamples)
			} else if !time.Now().Before(endAt) {
				e.finish(s)
				return
			}
		}
	}
}

func (e *Engine) writeChunk(ctx context.Context, s *session, offset, chunkSamples int) int {
	if offset >= len(s.samples) {
		return offset
	}
	end := offset + chunkSamples
	if end > len(s.samples) {
		end = len(s.samples)
	}

	scaled := make([]int16, end-offset)
	for i, v := range s.samples[offset:end] {
		scaled[i] = int16(float64(v) * e.cfg.Volume)
	}

	err := e.sink.Write(ctx, audioio.AudioChunk{
		Samples:    scaled,
		SampleRate: e.cfg.SampleRate,
		Channels:   e.cfg.Channels,
	})
	if err != nil {
		e.logger.Warn("playback write failed", "err", err)
		e.finish(s)
		return len(s.samples)
	}
	return end
}

// updateLevels analyses the window at the current playhead.
func (e *Engine) updateLevels(s *session) {
	elapsed := time.Since(s.startedAt)
	playhead := int(elapsed.Seconds() * float64(e.cfg.SampleRate) * float64(e.cfg.Channels))
	if playhead >= len(s.samples) {
		return
	}
	end := playhead + WindowSize
	if end > len(s.samples) {
		end = len(s.samples)
	}
	bands := e.analyser.Bands(s.samples[playhead:end])

	e.mu.Lock()
	if e.session == s {
		e.levels = bands
	}
	e.mu.Unlock()
}

// finish clears the session at its natural end.
func (e *Engine) finish(s *session) {
	e.mu.Lock()
	if e.session != s {
		e.mu.Unlock()
		return
	}
	e.session = nil
	e.levels = [3]float64{}
	e.mu.Unlock()

	_ = e.sink.Stop()
	e.logger.Debug("playback finished")
	if e.OnPlaybackEnd != nil {
		e.OnPlaybackEnd()
	}
}

// Stop cuts the current session immediately. Active reports false and
// levels read zero before Stop returns. Safe to call when idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	s := e.session
	e.session = nil
	e.levels = [3]float64{}
	e.mu.Unlock()

	if s == nil {
		return
	}

	close(s.stop)
	<-s.done
	_ = e.sink.Clear()
	e.logger.Debug("playback stopped")
	if e.OnPlaybackEnd != nil {
		e.OnPlaybackEnd()
	}
}

// Active reports whether a session is currently playing.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// Levels returns the current frequency band levels, zero when idle.
func (e *Engine) Levels() [3]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.levels
}
