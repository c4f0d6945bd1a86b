// Package app assembles the voice pipeline: capture, relay, dialogue,
// playback, reveal and the web talk surface.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weareedt/organic/internal/config"
	"github.com/weareedt/organic/internal/log"
	"github.com/weareedt/organic/pkg/audioio"
	"github.com/weareedt/organic/pkg/dialogue"
	"github.com/weareedt/organic/pkg/playback"
	"github.com/weareedt/organic/pkg/ptt"
	"github.com/weareedt/organic/pkg/recorder"
	"github.com/weareedt/organic/pkg/relay"
	"github.com/weareedt/organic/pkg/reveal"
	"github.com/weareedt/organic/pkg/web"
)

// playbackSampleRate is the PCM rate synthesized audio is decoded to.
const playbackSampleRate = 24000

// App owns the assembled pipeline.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	relay    *relay.Client
	recorder *recorder.Recorder
	engine   *playback.Engine
	reveal   *reveal.Synchronizer
	orch     *dialogue.Orchestrator
	ctrl     *ptt.Controller
	server   *web.Server
}

// New builds the pipeline from configuration.
func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	logger := log.L()
	a := &App{cfg: cfg, logger: logger.With("component", "app")}

	a.relay = relay.NewClient(
		relay.WithBaseURL(cfg.RelayBaseURL),
		relay.WithSessionID(cfg.SessionID),
		relay.WithModel(cfg.ASRModel),
		relay.WithLanguage(cfg.ASRLanguage),
		relay.WithLogger(logger),
	)

	playCfg := audioio.DefaultConfig()
	playCfg.Backend = audioio.Backend(cfg.AudioBackend)
	playCfg.SampleRate = playbackSampleRate
	sink, err := audioio.NewSink(playCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app: playback sink: %w", err)
	}

	a.engine = playback.NewEngine(playback.Config{
		SampleRate:   playbackSampleRate,
		Channels:     playCfg.Channels,
		Volume:       cfg.Volume,
		AnalysisTick: cfg.AnalysisTick,
	}, playback.NewFFmpegDecoder(playbackSampleRate, playCfg.Channels), sink, logger)

	a.reveal = reveal.NewSynchronizer(reveal.Config{
		FallbackCharInterval: cfg.FallbackCharInterval,
	}, logger)

	a.orch = dialogue.New(dialogue.Config{}, dialogue.Deps{
		Forwarder:   a.relay,
		Synthesizer: a.relay,
		Player:      a.engine,
		Revealer:    a.reveal,
		Notifier:    (*turnNotifier)(a),
		Logger:      logger,
	})

	events := &eventFanout{}
	a.recorder = recorder.New(recorder.Config{
		MinHold:       cfg.MinHold,
		BannedPhrases: cfg.BannedPhrases,
	}, recorder.Deps{
		Source:      a.captureSource(logger),
		Encoder:     recorder.NewOggOpusEncoder(cfg.CaptureRate, 1),
		Transcriber: a.relay,
		Events:      events,
		Logger:      logger,
	})

	a.ctrl = ptt.NewController(a.recorder, a.orch, logger)
	events.target = a.ctrl

	a.server = web.NewServer(web.Config{
		Addr:          cfg.ListenAddr,
		StaticDir:     cfg.StaticDir,
		LevelInterval: cfg.AnalysisTick,
	}, web.Deps{
		Controls:  a.ctrl,
		Submitter: a.orch,
		Speaker:   a.engine,
		Mic:       micMeter{a.recorder},
		Reveal:    a.reveal,
		Logger:    logger,
	})

	// State pushes: any button, reveal or playback change refreshes
	// websocket clients.
	a.ctrl.OnStateChanged = func(ptt.ButtonState) { a.server.PublishState() }
	a.reveal.OnUpdate = func(snap reveal.Snapshot) {
		a.ctrl.SetTyping(snap.Typing)
	}
	a.engine.OnPlaybackStart = a.server.PublishState
	a.engine.OnPlaybackEnd = a.server.PublishState

	return a, nil
}

// captureSource builds the lazy microphone factory. The source is
// opened on the first press, not at startup.
func (a *App) captureSource(logger *slog.Logger) recorder.SourceFactory {
	return func() (audioio.Source, error) {
		capCfg := audioio.DefaultConfig()
		capCfg.Backend = audioio.Backend(a.cfg.AudioBackend)
		capCfg.SampleRate = a.cfg.CaptureRate
		capCfg.Device = a.cfg.CaptureDevice
		return audioio.NewSource(capCfg, logger)
	}
}

// Run serves until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("pipeline up",
		"relay", a.cfg.RelayBaseURL,
		"addr", a.cfg.ListenAddr,
		"language", a.cfg.ASRLanguage,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops playback and the web server.
func (a *App) Shutdown() {
	a.engine.Stop()
	a.reveal.Cancel()
	if err := a.server.Shutdown(); err != nil {
		a.logger.Warn("server shutdown failed", "err", err)
	}
}

// micMeter adapts the recorder's level for the web server.
type micMeter struct {
	rec *recorder.Recorder
}

func (m micMeter) Level() float64 { return m.rec.Level() }

// eventFanout breaks the recorder/controller construction cycle: the
// recorder is built first with this placeholder, the controller is
// plugged in right after.
type eventFanout struct {
	target recorder.Events
}

func (e *eventFanout) StateChanged(s recorder.State) {
	if e.target != nil {
		e.target.StateChanged(s)
	}
}

func (e *eventFanout) Transcript(text string) {
	if e.target != nil {
		e.target.Transcript(text)
	}
}

func (e *eventFanout) RecorderError(err error) {
	if e.target != nil {
		e.target.RecorderError(err)
	}
}

// turnNotifier records turns in the conversation buffer and refreshes
// websocket clients.
type turnNotifier App

func (n *turnNotifier) TurnStarted(turnID, message string) {
	n.server.AddConversation("user", message)
	n.server.PublishState()
}

func (n *turnNotifier) TurnFinished(turn dialogue.Turn) {
	n.server.AddConversation("assistant", turn.Reply)
	n.server.PublishState()
}

func (n *turnNotifier) TurnFailed(turnID string, err error) {
	n.server.PublishState()
}
