package audioio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
)

// FFmpegSource captures microphone PCM audio by shelling out to ffmpeg.
// This is the production capture path; the process is started once and
// streamed until Stop.
type FFmpegSource struct {
	cfg     Config
	command string
	logger  *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewFFmpegSource creates an ffmpeg-backed audio source.
func NewFFmpegSource(cfg Config, logger *slog.Logger) *FFmpegSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegSource{
		cfg:     cfg,
		command: "ffmpeg",
		logger:  logger.With("component", "audioio.ffmpeg"),
	}
}

// captureArgs builds the ffmpeg argument list for the current platform.
func (s *FFmpegSource) captureArgs() []string {
	inputFormat := "pulse"
	device := s.cfg.Device
	if runtime.GOOS == "darwin" {
		inputFormat = "avfoundation"
		if device == "" {
			device = ":0"
		}
	}
	if device == "" {
		device = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", inputFormat,
		"-i", device,
		"-ac", strconv.Itoa(s.cfg.Channels),
		"-ar", strconv.Itoa(s.cfg.SampleRate),
	}
	// ffmpeg exposes denoise but not acoustic echo cancellation; the
	// EchoCancellation flag is honored only by backends that support it.
	if s.cfg.NoiseSuppression {
		args = append(args, "-af", "afftdn")
	}
	return append(args, "-f", "s16le", "-")
}

// Start launches the capture process and begins streaming chunks.
func (s *FFmpegSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := exec.CommandContext(procCtx, s.command, s.captureArgs()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("audioio: ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("audioio: start ffmpeg: %w", err)
	}

	s.running = true
	s.cancel = cancel
	s.streamCh = make(chan AudioChunk, 16)
	s.done = make(chan struct{})

	go s.readLoop(cmd, stdout, &stderr, s.streamCh, s.done)

	s.logger.Info("capture started",
		"sample_rate", s.cfg.SampleRate,
		"channels", s.cfg.Channels,
		"device", s.cfg.Device,
	)
	return nil
}

// readLoop is the only writer and the only closer of ch; Stop just
// signals it, so a send can never race a close.
func (s *FFmpegSource) readLoop(cmd *exec.Cmd, stdout io.ReadCloser, stderr *bytes.Buffer, ch chan AudioChunk, done chan struct{}) {
	defer func() {
		_ = cmd.Wait()
		close(ch)
		close(done)
	}()

	bufBytes := s.cfg.BufferSize() * s.cfg.Channels * 2
	buf := make([]byte, bufBytes)

	for {
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return
			}
			chunk := AudioChunk{
				Samples:    BytesToSamples(buf[:n]),
				SampleRate: s.cfg.SampleRate,
				Channels:   s.cfg.Channels,
			}
			select {
			case ch <- chunk:
			default:
				// Consumer is behind; drop the chunk.
			}
		}
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.running = false
			s.mu.Unlock()
			if running && err != io.EOF && err != io.ErrUnexpectedEOF {
				s.logger.Warn("capture read failed", "err", err, "stderr", stderr.String())
			}
			return
		}
	}
}

// Stop halts capture. Safe to call multiple times. The stream channel
// is closed by the read loop once it has wound down.
func (s *FFmpegSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	if done != nil {
		<-done
	}
	return nil
}

// Stream returns the audio chunk channel.
func (s *FFmpegSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the capture configuration.
func (s *FFmpegSource) Config() Config { return s.cfg }

// Name returns "ffmpeg".
func (s *FFmpegSource) Name() string { return "ffmpeg" }

// Close releases resources.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

var _ Source = (*FFmpegSource)(nil)

// FFmpegSink plays PCM16 audio by piping it to an ffmpeg process bound to
// the platform's default output device.
type FFmpegSink struct {
	cfg     Config
	command string
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	stdin   io.WriteCloser
	cancel  context.CancelFunc
	proc    *os.Process
}

// NewFFmpegSink creates an ffmpeg-backed audio sink.
func NewFFmpegSink(cfg Config, logger *slog.Logger) *FFmpegSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegSink{
		cfg:     cfg,
		command: "ffmpeg",
		logger:  logger.With("component", "audioio.ffmpeg"),
	}
}

func (s *FFmpegSink) playbackArgs() []string {
	outFormat := "alsa"
	outDevice := "default"
	if runtime.GOOS == "darwin" {
		outFormat = "audiotoolbox"
		outDevice = "-"
	}
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "s16le",
		"-ar", strconv.Itoa(s.cfg.SampleRate),
		"-ac", strconv.Itoa(s.cfg.Channels),
		"-i", "pipe:0",
		"-f", outFormat, outDevice,
	}
}

// Start launches the playback process.
func (s *FFmpegSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := exec.CommandContext(procCtx, s.command, s.playbackArgs()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("audioio: ffmpeg stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("audioio: start ffmpeg playback: %w", err)
	}

	s.running = true
	s.stdin = stdin
	s.cancel = cancel
	s.proc = cmd.Process

	go func() { _ = cmd.Wait() }()
	return nil
}

// Stop halts playback. Safe to call multiple times.
func (s *FFmpegSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *FFmpegSink) stopLocked() error {
	if !s.running {
		return nil
	}
	s.running = false
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// Write pipes a chunk to the playback process.
func (s *FFmpegSink) Write(ctx context.Context, chunk AudioChunk) error {
	s.mu.Lock()
	stdin := s.stdin
	running := s.running
	s.mu.Unlock()

	if !running || stdin == nil {
		return io.ErrClosedPipe
	}
	if _, err := stdin.Write(chunk.Bytes()); err != nil {
		// Process died underneath us; tear down so the next Start is clean.
		s.mu.Lock()
		_ = s.stopLocked()
		s.mu.Unlock()
		return fmt.Errorf("audioio: write playback: %w", err)
	}
	return nil
}

// Clear kills the playback process, discarding anything it buffered.
// The next Write requires a fresh Start.
func (s *FFmpegSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

// Config returns the audio configuration.
func (s *FFmpegSink) Config() Config { return s.cfg }

// Name returns "ffmpeg".
func (s *FFmpegSink) Name() string { return "ffmpeg" }

// Close releases resources.
func (s *FFmpegSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stopLocked()
}

var _ Sink = (*FFmpegSink)(nil)
