// Package reveal paces character-by-character display of reply text so
// the full line lands together with the end of the spoken audio.
package reveal

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultFallbackCharInterval paces the reveal when no audio
	// duration is known.
	DefaultFallbackCharInterval = 50 * time.Millisecond

	// DefaultTrailingDelay keeps the typing indicator up briefly after
	// the last character, so the cutoff does not look abrupt.
	DefaultTrailingDelay = 100 * time.Millisecond
)

// Snapshot is the current reveal state.
type Snapshot struct {
	Full    string
	Visible string
	Typing  bool
}

// Config holds reveal tunables.
type Config struct {
	FallbackCharInterval time.Duration
	TrailingDelay        time.Duration
}

// Synchronizer runs at most one reveal at a time. A new Reveal
// supersedes the current one and restarts from an empty prefix.
type Synchronizer struct {
	cfg    Config
	logger *slog.Logger

	// OnUpdate fires on every reveal step, including the final one where
	// Typing flips false. Invoked from the reveal goroutine.
	OnUpdate func(Snapshot)

	mu      sync.Mutex
	gen     uint64
	full    []rune
	visible int
	typing  bool
}

// NewSynchronizer creates a reveal synchronizer.
func NewSynchronizer(cfg Config, logger *slog.Logger) *Synchronizer {
	if cfg.FallbackCharInterval <= 0 {
		cfg.FallbackCharInterval = DefaultFallbackCharInterval
	}
	if cfg.TrailingDelay <= 0 {
		cfg.TrailingDelay = DefaultTrailingDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{cfg: cfg, logger: logger.With("component", "reveal")}
}

// charInterval spreads the reveal across the audio duration, falling
// back to a fixed per-character pace when no duration is known.
func charInterval(duration time.Duration, runes int, fallback time.Duration) time.Duration {
	if duration <= 0 {
		return fallback
	}
	if runes < 1 {
		runes = 1
	}
	return duration / time.Duration(runes)
}

// Reveal starts revealing text over audioDuration. Pass zero for a
// text-only reveal at the fallback pace. Supersedes any active reveal.
func (s *Synchronizer) Reveal(text string, audioDuration time.Duration) {
	runes := []rune(text)
	interval := charInterval(audioDuration, len(runes), s.cfg.FallbackCharInterval)

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.full = runes
	s.visible = 0
	s.typing = true
	s.mu.Unlock()

	s.logger.Debug("reveal started", "chars", len(runes), "interval", interval)
	s.emit()
	go s.loop(gen, interval)
}

func (s *Synchronizer) loop(gen uint64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		if s.visible >= len(s.full) {
			s.mu.Unlock()
			break
		}
		s.visible++
		done := s.visible >= len(s.full)
		s.mu.Unlock()

		s.emit()
		if done {
			break
		}
	}

	time.Sleep(s.cfg.TrailingDelay)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.typing = false
	s.mu.Unlock()
	s.emit()
}

// Cancel stops the active reveal, freezing the visible prefix.
func (s *Synchronizer) Cancel() {
	s.mu.Lock()
	if !s.typing {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.typing = false
	s.mu.Unlock()
	s.emit()
}

// Snapshot returns the current reveal state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Full:    string(s.full),
		Visible: string(s.full[:s.visible]),
		Typing:  s.typing,
	}
}

// IsTyping reports whether a reveal is in progress.
func (s *Synchronizer) IsTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

func (s *Synchronizer) emit() {
	if s.OnUpdate != nil {
		s.OnUpdate(s.Snapshot())
	}
}
