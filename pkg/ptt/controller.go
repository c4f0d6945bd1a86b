// Package ptt drives the push-to-talk control: it maps press and
// release gestures onto the recorder and hands finished transcripts to
// the dialogue layer.
package ptt

import (
	"context"
	"log/slog"
	"sync"

	"github.com/weareedt/organic/pkg/dialogue"
	"github.com/weareedt/organic/pkg/recorder"
)

// ButtonState is what the talk control should display.
type ButtonState string

const (
	ButtonIdle       ButtonState = "idle"
	ButtonRecording  ButtonState = "recording"
	ButtonProcessing ButtonState = "processing"
	ButtonTyping     ButtonState = "typing"
)

// Recorder is the capture surface the controller drives.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	VisibilityLost()
	RetryDevice()
	State() recorder.State
}

// Submitter runs a conversation turn.
type Submitter interface {
	Submit(ctx context.Context, message string) (dialogue.Turn, error)
	Active() bool
}

// Controller owns the talk gesture lifecycle. It implements
// recorder.Events so transcripts flow back in. All methods are safe for
// concurrent use.
type Controller struct {
	rec    Recorder
	sub    Submitter
	logger *slog.Logger

	// OnStateChanged fires whenever the button state may have changed.
	OnStateChanged func(ButtonState)

	mu       sync.Mutex
	awaiting bool
	typing   bool
	loading  bool
	lastErr  error
}

// NewController creates a push-to-talk controller.
func NewController(rec Recorder, sub Submitter, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		rec:    rec,
		sub:    sub,
		logger: logger.With("component", "ptt"),
	}
}

// Press arms the recorder. Ignored while a reveal is typing or a turn
// is in flight, matching the disabled button in those states.
func (c *Controller) Press(ctx context.Context) {
	c.mu.Lock()
	typing := c.typing
	loading := c.loading
	c.mu.Unlock()

	if typing || loading || c.sub.Active() {
		c.logger.Debug("press ignored", "typing", typing, "loading", loading)
		return
	}

	if err := c.rec.Start(ctx); err != nil {
		c.logger.Warn("press failed", "err", err)
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
	}
	c.emit()
}

// Release disarms the recorder. The transcript, if the hold was long
// enough, arrives later via Transcript.
func (c *Controller) Release(ctx context.Context) {
	c.mu.Lock()
	c.awaiting = c.rec.State() == recorder.StateRecording
	c.mu.Unlock()

	if err := c.rec.Stop(ctx); err != nil {
		c.logger.Warn("release failed", "err", err)
	}
	c.emit()
}

// VisibilityLost aborts an in-progress hold when the surface is hidden.
func (c *Controller) VisibilityLost() {
	c.mu.Lock()
	c.awaiting = false
	c.mu.Unlock()

	c.rec.VisibilityLost()
	c.emit()
}

// RetryDevice clears a sticky capture failure.
func (c *Controller) RetryDevice() {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
	c.rec.RetryDevice()
	c.emit()
}

// State returns the button state to display.
func (c *Controller) State() ButtonState {
	switch c.rec.State() {
	case recorder.StateRecording:
		return ButtonRecording
	case recorder.StateProcessing:
		return ButtonProcessing
	}
	if c.sub.Active() {
		return ButtonProcessing
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return ButtonProcessing
	}
	if c.typing {
		return ButtonTyping
	}
	return ButtonIdle
}

// LastError returns the most recent capture error, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SetTyping tracks whether a reveal is in progress, which disables the
// talk control.
func (c *Controller) SetTyping(typing bool) {
	c.mu.Lock()
	c.typing = typing
	c.mu.Unlock()
	c.emit()
}

// SetLoading forces the disabled processing state while another input
// surface owns the turn.
func (c *Controller) SetLoading(loading bool) {
	c.mu.Lock()
	c.loading = loading
	c.mu.Unlock()
	c.emit()
}

// StateChanged implements recorder.Events. A return to idle ends the
// gesture: a discarded hold never produces a transcript, and a
// completed one delivers its transcript before the idle event, so any
// wait still pending here is stale.
func (c *Controller) StateChanged(state recorder.State) {
	if state == recorder.StateIdle {
		c.mu.Lock()
		c.awaiting = false
		c.mu.Unlock()
	}
	c.emit()
}

// Transcript implements recorder.Events. Only transcripts from a
// release this controller is waiting on are submitted; empty ones reset
// the gesture without a turn.
func (c *Controller) Transcript(text string) {
	c.mu.Lock()
	if !c.awaiting {
		c.mu.Unlock()
		c.logger.Debug("transcript ignored, no release pending")
		return
	}
	c.awaiting = false
	c.mu.Unlock()

	if text == "" {
		c.logger.Debug("empty transcript, no turn")
		c.emit()
		return
	}

	// Detached so the recorder's event goroutine never blocks on a turn.
	go func() {
		if _, err := c.sub.Submit(context.Background(), text); err != nil {
			c.logger.Warn("turn submission failed", "err", err)
		}
		c.emit()
	}()
	c.emit()
}

// RecorderError implements recorder.Events.
func (c *Controller) RecorderError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.logger.Warn("recorder error", "err", err)
	c.emit()
}

func (c *Controller) emit() {
	if c.OnStateChanged != nil {
		c.OnStateChanged(c.State())
	}
}

var _ recorder.Events = (*Controller)(nil)
