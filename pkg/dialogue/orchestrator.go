package dialogue

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Forwarder sends a user message and returns the assistant reply.
type Forwarder interface {
	ForwardMessage(ctx context.Context, message string) (string, error)
}

// Synthesizer converts reply text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config holds orchestrator tunables.
type Config struct {
	// TurnTimeout bounds one full turn. Defaults to 60s.
	TurnTimeout time.Duration
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Forwarder   Forwarder
	Synthesizer Synthesizer
	Player      Player
	Revealer    Revealer
	Notifier    Notifier
	Logger      *slog.Logger
}

// Orchestrator runs conversation turns with single-flight semantics.
type Orchestrator struct {
	cfg      Config
	fwd      Forwarder
	synth    Synthesizer
	player   Player
	revealer Revealer
	notifier Notifier
	logger   *slog.Logger

	active atomic.Bool
}

// New creates an orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 60 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Orchestrator{
		cfg:      cfg,
		fwd:      deps.Forwarder,
		synth:    deps.Synthesizer,
		player:   deps.Player,
		revealer: deps.Revealer,
		notifier: notifier,
		logger:   logger.With("component", "dialogue"),
	}
}

// Active reports whether a turn is in flight.
func (o *Orchestrator) Active() bool {
	return o.active.Load()
}

// Submit runs one turn to the point where playback and reveal have
// started, then returns. Returns ErrTurnActive if a turn is already in
// flight and ErrEmptyMessage for blank input.
func (o *Orchestrator) Submit(ctx context.Context, message string) (Turn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Turn{}, ErrEmptyMessage
	}

	if !o.active.CompareAndSwap(false, true) {
		o.logger.Debug("turn dropped, another in flight")
		return Turn{}, ErrTurnActive
	}
	defer o.active.Store(false)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	defer cancel()

	turn := Turn{ID: uuid.NewString(), Message: message}
	o.notifier.TurnStarted(turn.ID, message)
	o.logger.Info("turn started", "turn_id", turn.ID, "chars", len(message))

	// Whatever is still playing belongs to a previous turn.
	o.player.Stop()

	reply, err := o.fwd.ForwardMessage(ctx, message)
	if err != nil {
		o.logger.Warn("forward failed", "turn_id", turn.ID, "err", err)
		o.notifier.TurnFailed(turn.ID, err)
		return Turn{}, err
	}
	turn.Reply = reply

	turn.Duration, turn.Spoken = o.speak(ctx, turn.ID, reply)
	o.revealer.Reveal(reply, turn.Duration)

	o.logger.Info("turn finished", "turn_id", turn.ID, "spoken", turn.Spoken, "audio", turn.Duration)
	o.notifier.TurnFinished(turn)
	return turn, nil
}

// speak synthesizes and starts playback. Synthesis or playback failure
// degrades the turn to text-only; the reply still reveals at fallback
// pace.
func (o *Orchestrator) speak(ctx context.Context, turnID, reply string) (time.Duration, bool) {
	audio, err := o.synth.Synthesize(ctx, reply)
	if err != nil {
		o.logger.Warn("synthesis failed, text-only turn", "turn_id", turnID, "err", err)
		return 0, false
	}

	duration, err := o.player.Play(ctx, audio)
	if err != nil {
		o.logger.Warn("playback failed, text-only turn", "turn_id", turnID, "err", err)
		return 0, false
	}
	return duration, true
}
