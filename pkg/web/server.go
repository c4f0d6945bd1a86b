// Package web serves the talk surface: REST endpoints for the
// push-to-talk gestures and typed messages, plus websocket streams for
// live state and audio levels.
package web

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/weareedt/organic/pkg/dialogue"
	"github.com/weareedt/organic/pkg/hub"
	"github.com/weareedt/organic/pkg/ptt"
	"github.com/weareedt/organic/pkg/reveal"
)

// UIState is the state snapshot rendered by the talk surface.
type UIState struct {
	Button      string     `json:"button"`
	Speaking    bool       `json:"speaking"`
	Typing      bool       `json:"typing"`
	FullText    string     `json:"full_text"`
	VisibleText string     `json:"visible_text"`
	MicLevel    float64    `json:"mic_level"`
	Levels      [3]float64 `json:"levels"`
	Error       string     `json:"error,omitempty"`
}

// ConversationEntry is one message in the conversation buffer.
type ConversationEntry struct {
	Time    string `json:"time"`
	Role    string `json:"role"` // user, assistant
	Message string `json:"message"`
}

// Controls is the push-to-talk surface the server drives.
type Controls interface {
	Press(ctx context.Context)
	Release(ctx context.Context)
	VisibilityLost()
	RetryDevice()
	SetLoading(loading bool)
	State() ptt.ButtonState
	LastError() error
}

// Submitter runs a typed-message turn.
type Submitter interface {
	Submit(ctx context.Context, message string) (dialogue.Turn, error)
}

// Speaker exposes playback activity and band levels.
type Speaker interface {
	Active() bool
	Levels() [3]float64
}

// MicMeter exposes the live microphone level.
type MicMeter interface {
	Level() float64
}

// Snapshotter exposes the current reveal state.
type Snapshotter interface {
	Snapshot() reveal.Snapshot
}

// Deps are the server's collaborators.
type Deps struct {
	Controls  Controls
	Submitter Submitter
	Speaker   Speaker
	Mic       MicMeter
	Reveal    Snapshotter
	Logger    *slog.Logger
}

// Config holds server tunables.
type Config struct {
	// Addr is the listen address, e.g. ":3000".
	Addr string
	// StaticDir serves the talk surface assets. Empty disables it.
	StaticDir string
	// LevelInterval paces the binary level frame stream. Defaults to 16ms.
	LevelInterval time.Duration
}

// Server is the talk surface HTTP server.
type Server struct {
	cfg    Config
	app    *fiber.App
	logger *slog.Logger

	controls  Controls
	submitter Submitter
	speaker   Speaker
	mic       MicMeter
	reveal    Snapshotter

	// Conversation buffer (last 100 entries)
	conversation   []ConversationEntry
	conversationMu sync.RWMutex

	// Hubs for websocket broadcast
	stateHub *hub.Hub
	levelHub *hub.Hub

	stopLevels chan struct{}
	stopOnce   sync.Once
}

// NewServer creates the talk surface server.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.LevelInterval <= 0 {
		cfg.LevelInterval = 16 * time.Millisecond
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:          cfg,
		logger:       logger.With("component", "web"),
		controls:     deps.Controls,
		submitter:    deps.Submitter,
		speaker:      deps.Speaker,
		mic:          deps.Mic,
		reveal:       deps.Reveal,
		conversation: make([]ConversationEntry, 0, 100),
		stateHub:     hub.New("state", logger),
		levelHub:     hub.New("levels", logger),
		stopLevels:   make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Organic",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/conversation", s.handleGetConversation)
	api.Post("/ptt/press", s.handlePress)
	api.Post("/ptt/release", s.handleRelease)
	api.Post("/ptt/retry", s.handleRetry)
	api.Post("/visibility", s.handleVisibility)
	api.Post("/message", s.handleMessage)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/state", websocket.New(s.handleStateWS))
	app.Get("/ws/levels", websocket.New(s.handleLevelsWS))

	s.app = app
	return s
}

// Start runs the hubs and listens. Blocks until shutdown.
func (s *Server) Start() error {
	go s.stateHub.Run()
	go s.levelHub.Run()
	go s.levelLoop()

	s.logger.Info("talk surface listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server failed", "err", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.stopOnce.Do(func() { close(s.stopLevels) })
	return s.app.Shutdown()
}

// snapshot assembles the current UI state.
func (s *Server) snapshot() UIState {
	snap := s.reveal.Snapshot()
	state := UIState{
		Button:      string(s.controls.State()),
		Speaking:    s.speaker.Active(),
		Typing:      snap.Typing,
		FullText:    snap.Full,
		VisibleText: snap.Visible,
		MicLevel:    s.mic.Level(),
		Levels:      s.speaker.Levels(),
	}
	if err := s.controls.LastError(); err != nil {
		state.Error = err.Error()
	}
	return state
}

// PublishState broadcasts the current UI state to websocket clients.
// Called by the wiring whenever something changed.
func (s *Server) PublishState() {
	if err := s.stateHub.BroadcastJSON(s.snapshot()); err != nil {
		s.logger.Warn("state broadcast failed", "err", err)
	}
}

// AddConversation records one exchange message and refreshes clients.
func (s *Server) AddConversation(role, message string) {
	entry := ConversationEntry{
		Time:    time.Now().Format("15:04:05"),
		Role:    role,
		Message: message,
	}

	s.conversationMu.Lock()
	s.conversation = append(s.conversation, entry)
	if len(s.conversation) > 100 {
		s.conversation = s.conversation[1:]
	}
	s.conversationMu.Unlock()
}

// levelLoop streams compact binary level frames while audio is moving
// in either direction. Frame layout: four little-endian float32s,
// bass, mid, high, mic.
func (s *Server) levelLoop() {
	ticker := time.NewTicker(s.cfg.LevelInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopLevels:
			return
		case <-ticker.C:
			if s.levelHub.ClientCount() == 0 {
				continue
			}
			levels := s.speaker.Levels()
			mic := s.mic.Level()
			if levels == [3]float64{} && mic == 0 {
				continue
			}
			s.levelHub.BroadcastBinary(levelFrame(levels, mic))
		}
	}
}

func levelFrame(levels [3]float64, mic float64) []byte {
	frame := make([]byte, 16)
	binary.LittleEndian.PutUint32(frame[0:], math.Float32bits(float32(levels[0])))
	binary.LittleEndian.PutUint32(frame[4:], math.Float32bits(float32(levels[1])))
	binary.LittleEndian.PutUint32(frame[8:], math.Float32bits(float32(levels[2])))
	binary.LittleEndian.PutUint32(frame[12:], math.Float32bits(float32(mic)))
	return frame
}
