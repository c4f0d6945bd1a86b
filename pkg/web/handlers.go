package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/weareedt/organic/pkg/dialogue"
	"github.com/weareedt/organic/pkg/hub"
)

// handleState returns the current UI state.
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.snapshot())
}

// handleGetConversation returns the recent conversation.
func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	s.conversationMu.RLock()
	defer s.conversationMu.RUnlock()
	return c.JSON(s.conversation)
}

// handlePress arms the recorder.
func (s *Server) handlePress(c *fiber.Ctx) error {
	s.controls.Press(c.Context())
	return c.JSON(s.snapshot())
}

// handleRelease disarms the recorder.
func (s *Server) handleRelease(c *fiber.Ctx) error {
	s.controls.Release(c.Context())
	return c.JSON(s.snapshot())
}

// handleRetry clears a sticky capture error.
func (s *Server) handleRetry(c *fiber.Ctx) error {
	s.controls.RetryDevice()
	return c.JSON(s.snapshot())
}

// VisibilityRequest reports surface visibility changes.
type VisibilityRequest struct {
	Hidden bool `json:"hidden"`
}

// handleVisibility aborts an in-progress hold when the surface hides.
func (s *Server) handleVisibility(c *fiber.Ctx) error {
	var req VisibilityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}
	if req.Hidden {
		s.controls.VisibilityLost()
	}
	return c.JSON(s.snapshot())
}

// MessageRequest is a typed message submission.
type MessageRequest struct {
	Message string `json:"message"`
}

// handleMessage runs a typed-message turn, bypassing the microphone.
func (s *Server) handleMessage(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}

	// A reveal in flight means the previous reply is still being read
	// out; typed input waits for it just like the talk button does.
	if s.reveal.Snapshot().Typing {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "a reply is still revealing",
		})
	}

	// The talk control is disabled while a typed turn runs.
	s.controls.SetLoading(true)
	turn, err := s.submitter.Submit(c.Context(), req.Message)
	s.controls.SetLoading(false)
	switch {
	case errors.Is(err, dialogue.ErrEmptyMessage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message is empty",
		})
	case errors.Is(err, dialogue.ErrTurnActive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "a turn is already in progress",
		})
	case err != nil:
		s.logger.Warn("typed turn failed", "err", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// The turn notifier records both sides of the exchange in the
	// conversation buffer; nothing to add here.
	return c.JSON(fiber.Map{
		"turn_id": turn.ID,
		"reply":   turn.Reply,
		"spoken":  turn.Spoken,
	})
}

// stateWriter is the slice of a websocket connection needed for the
// initial snapshot push.
type stateWriter interface {
	WriteJSON(v interface{}) error
}

// sendSnapshot pushes the current state to a freshly attached client.
// Reports whether the connection is still usable.
func (s *Server) sendSnapshot(c stateWriter) bool {
	if err := c.WriteJSON(s.snapshot()); err != nil {
		s.logger.Debug("initial state write failed", "err", err)
		return false
	}
	return true
}

// handleStateWS streams UI state snapshots.
func (s *Server) handleStateWS(c *websocket.Conn) {
	// Send the current state before joining the broadcast stream; a
	// connection that cannot take it is already dead.
	if !s.sendSnapshot(c) {
		_ = c.Close()
		return
	}

	client := hub.NewClient(s.stateHub, c)
	client.Run()
}

// handleLevelsWS streams binary level frames.
func (s *Server) handleLevelsWS(c *websocket.Conn) {
	client := hub.NewClient(s.levelHub, c)
	client.Run()
}
