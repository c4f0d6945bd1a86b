// Package dialogue orchestrates one conversation turn: forward the user
// message, synthesize the reply, start playback and pace the text
// reveal to the audio. At most one turn runs at a time; submissions
// during an active turn are dropped, not queued.
package dialogue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTurnActive means a turn is already in flight; the submission
	// was dropped.
	ErrTurnActive = errors.New("dialogue: turn already active")

	// ErrEmptyMessage means the message was empty after trimming.
	ErrEmptyMessage = errors.New("dialogue: empty message")
)

// Turn is one completed exchange.
type Turn struct {
	ID       string
	Message  string
	Reply    string
	Duration time.Duration
	Spoken   bool
}

// Player plays synthesized audio. Play resolves the audio duration up
// front; Stop cuts whatever is currently audible.
type Player interface {
	Play(ctx context.Context, data []byte) (time.Duration, error)
	Stop()
}

// Revealer paces the reply text display against the audio duration.
// A zero duration means text-only fallback pacing.
type Revealer interface {
	Reveal(text string, audioDuration time.Duration)
}

// Notifier receives turn lifecycle events.
type Notifier interface {
	TurnStarted(turnID, message string)
	TurnFinished(turn Turn)
	TurnFailed(turnID string, err error)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) TurnStarted(string, string) {}
func (NopNotifier) TurnFinished(Turn)          {}
func (NopNotifier) TurnFailed(string, error)   {}

var _ Notifier = NopNotifier{}
